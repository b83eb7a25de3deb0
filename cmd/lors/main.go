// Command lors is a thin demonstration CLI over the session transfer
// engine: it wires a depot table and an in-memory metadata registry
// together and exposes upload/download/copy/mkdir as cobra subcommands,
// mirroring the layering of a cobra command delegating straight into a
// library call.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lorsio/lors/depot"
	"github.com/lorsio/lors/driver"
	"github.com/lorsio/lors/driver/ibp"
	"github.com/lorsio/lors/driver/poolstore"
	"github.com/lorsio/lors/metaregistry/memregistry"
	"github.com/lorsio/lors/session"
)

var (
	cfgFile    string
	depotsFile string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lors",
		Short: "exercise the lors transfer engine against in-memory reference depots",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a session config file (JSON, YAML, or TOML)")
	root.PersistentFlags().StringVar(&depotsFile, "depots", "", "path to a depot table file (JSON)")

	root.AddCommand(newUploadCmd(), newDownloadCmd(), newCopyCmd(), newMkdirCmd())
	return root
}

func newLogger() *zap.Logger {
	log, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func loadSessionConfig() (session.Config, error) {
	v := viper.New()
	v.SetDefault("threads", 4)
	v.SetDefault("copies", 1)
	v.SetDefault("timeout_s", 30)
	v.SetDefault("duration", 3600)
	v.SetDefault("block_size", "64KiB")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return session.Config{}, fmt.Errorf("reading config %q: %w", cfgFile, err)
		}
	}
	return session.LoadConfig(v)
}

// depotSpec mirrors the JSON shape a depot table file carries: one entry
// per access point, naming the backend kind and its opaque config.
type depotSpec struct {
	Kind    string         `json:"kind"`
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config"`
}

func loadDepots() (depot.Table, error) {
	table := depot.Table{}
	if depotsFile == "" {
		return table, nil
	}

	raw, err := os.ReadFile(depotsFile)
	if err != nil {
		return nil, err
	}
	var specs map[string]depotSpec
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("parsing depots file: %w", err)
	}

	for accessPoint, spec := range specs {
		cfg, err := depotConfigFor(spec.Kind, spec.Config)
		if err != nil {
			return nil, err
		}
		table[accessPoint] = depot.Depot{
			AccessPoint: accessPoint,
			Kind:        spec.Kind,
			Enabled:     spec.Enabled,
			Config:      cfg,
		}
	}
	return table, nil
}

func depotConfigFor(kind string, raw map[string]any) (any, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "pool":
		var cfg poolstore.Config
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case "ibp":
		var cfg ibp.Config
		if err := json.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	default:
		return nil, fmt.Errorf("unknown depot kind %q", kind)
	}
}

func newRegistry() *driver.Registry {
	return driver.NewRegistry(
		driver.Binding{Kind: "pool", Schema: poolstore.WireSchema, Driver: poolstore.New()},
		driver.Binding{Kind: "ibp", Schema: ibp.WireSchema, Driver: ibp.New()},
	)
}

func newSession(id string) (*session.Session, error) {
	cfg, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}
	depots, err := loadDepots()
	if err != nil {
		return nil, err
	}
	meta := memregistry.New()
	return session.New(id, newRegistry(), depots, meta, cfg, newLogger()), nil
}

func newUploadCmd() *cobra.Command {
	var copies int
	cmd := &cobra.Command{
		Use:   "upload [local path]",
		Short: "upload a local file into the reference depots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession("cli-upload")
			if err != nil {
				return err
			}
			defer sess.Close()
			if copies > 0 {
				sess.Cfg.Copies = copies
			}

			result, err := sess.Upload(context.Background(), args[0], session.UploadOptions{})
			if err != nil {
				return err
			}
			fmt.Printf("uploaded %d bytes as exnode %s in %.3fs\n", result.Bytes, result.Exnode.ID, result.DurationS)
			return nil
		},
	}
	cmd.Flags().IntVar(&copies, "copies", 0, "replica count per chunk, overriding config")
	return cmd
}

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download [exnode ref] [local path]",
		Short: "download an exnode from the reference depots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession("cli-download")
			if err != nil {
				return err
			}
			defer sess.Close()

			result, err := sess.Download(context.Background(), args[0], args[1], session.DownloadOptions{})
			if err != nil {
				return err
			}
			fmt.Printf("downloaded %d bytes in %.3fs\n", result.Bytes, result.DurationS)
			return nil
		},
	}
	return cmd
}

func newCopyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "copy [exnode ref]",
		Short: "replicate an exnode's extents to a fresh set of destination depots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession("cli-copy")
			if err != nil {
				return err
			}
			defer sess.Close()

			result, err := sess.Copy(context.Background(), args[0], session.CopyOptions{})
			if err != nil {
				return err
			}
			fmt.Printf("copied exnode %s -> %s in %.3fs\n", args[0], result.Exnode.ID, result.DurationS)
			return nil
		},
	}
	return cmd
}

func newMkdirCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkdir [path]",
		Short: "create a chain of directory exnodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession("cli-mkdir")
			if err != nil {
				return err
			}
			defer sess.Close()

			ex, err := sess.Mkdir(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("created %s as exnode %s\n", args[0], ex.ID)
			return nil
		},
	}
	return cmd
}
