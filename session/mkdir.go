package session

import (
	"context"
	"strings"

	"github.com/lorsio/lors/errkinds"
	"github.com/lorsio/lors/exnode"
)

// Mkdir walks path (a "/"-separated chain of directory names) and inserts
// a new directory exnode for every component, linking each into its
// parent's Children list, and returns the leaf directory exnode. Existing
// directories are not looked up: a component whose name already exists in
// the registry still gets a fresh exnode. Serialized per Session via a single mutex: concurrent Mkdir
// calls on sibling paths within one session never race, though concurrent
// mkdir across sessions remains unsynchronized, per the design's resolved
// Open Question on the directory-assembly race.
func (s *Session) Mkdir(ctx context.Context, path string) (ex *exnode.Exnode, err error) {
	defer mon.Task()(&ctx)(&err)

	leave, err := s.enter()
	if err != nil {
		return nil, err
	}
	defer leave()

	s.mkdirMu.Lock()
	defer s.mkdirMu.Unlock()

	names := splitPath(path)
	if len(names) == 0 {
		return nil, errkinds.RegistryError.New("mkdir: empty path")
	}

	var parent *exnode.Exnode
	for _, name := range names {
		now := nowMicros()
		child := &exnode.Exnode{
			Name:    name,
			Mode:    exnode.ModeDirectory,
			Created: now,
			Updated: now,
		}
		if parent != nil {
			child.Parent = parent.ID
		}

		if err := s.Meta.InsertExnode(ctx, child); err != nil {
			return nil, errkinds.RegistryError.Wrap(err)
		}

		if parent != nil {
			parent.Children = append(parent.Children, child.ID)
			if err := s.Meta.UpdateExnode(ctx, parent); err != nil {
				return nil, errkinds.RegistryError.Wrap(err)
			}
		}

		parent = child
	}

	if err := s.Meta.Flush(ctx); err != nil {
		return nil, errkinds.RegistryError.Wrap(err)
	}
	return parent, nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
