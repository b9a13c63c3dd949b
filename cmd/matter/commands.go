package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/matter-labs/matterdb/pkg/storage"
	"github.com/matter-labs/matterdb/pkg/storage/inspect"
)

// withInspector runs fn against a snapshot of the configured database.
func withInspector(conf *config, fn func(in *inspect.Inspector) error) error {
	d, closeDB, err := conf.openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	snap, err := d.Snapshot()
	if err != nil {
		return err
	}
	defer snap.Close() //nolint:errcheck

	in, err := inspect.New(snap, conf.v.GetString(keyNamespace))
	if err != nil {
		return err
	}
	return fn(in)
}

// parseIndexName accepts "name" or "name[hexgroupkey]".
func parseIndexName(arg string) (string, error) {
	open := strings.IndexByte(arg, '[')
	if open < 0 {
		return arg, nil
	}
	if !strings.HasSuffix(arg, "]") {
		return "", fmt.Errorf("malformed index name %q", arg)
	}
	key, err := hex.DecodeString(arg[open+1 : len(arg)-1])
	if err != nil {
		return "", fmt.Errorf("group key of %q: %w", arg, err)
	}
	return storage.FromRoot(arg[:open]).AppendKey(key).Qualified(), nil
}

func newIndexesCmd(conf *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexes",
		Short: "List indexes and their types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prefix := conf.v.GetString("prefix")
			return withInspector(conf, func(in *inspect.Inspector) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				for _, info := range in.Filter(prefix) {
					fmt.Fprintf(w, "%s\t%s\n", storage.ParseQualified(info.Name), info.Type)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().String("prefix", "", "only list names starting with this prefix")
	return cmd
}

func newListCmd(conf *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [name]",
		Short: "Print a window of a list index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := parseIndexName(args[0])
			if err != nil {
				return err
			}
			format, err := parseFormat(conf.v.GetString("format"))
			if err != nil {
				return err
			}
			offset := conf.v.GetUint64("offset")
			limit := conf.v.GetUint64("limit")

			return withInspector(conf, func(in *inspect.Inspector) error {
				items, err := inspect.List(in, name, offset, limit, format.codec())
				if err != nil {
					return err
				}
				for _, item := range items {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", item.Key, format.render(item.Value))
				}
				return nil
			})
		},
	}
	cmd.Flags().Uint64("offset", 0, "index of the first item")
	cmd.Flags().Uint64("limit", 20, "maximum number of items")
	cmd.Flags().String("format", "hex", "value format (hex, u64, string, cbor)")
	return cmd
}

func newGetCmd(conf *config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [name] [index]",
		Short: "Print one item of a list index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := parseIndexName(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("index must be a number: %w", err)
			}
			format, err := parseFormat(conf.v.GetString("format"))
			if err != nil {
				return err
			}

			return withInspector(conf, func(in *inspect.Inspector) error {
				value, err := inspect.ListItem(in, name, index, format.codec())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), format.render(value))
				return nil
			})
		},
	}
	cmd.Flags().String("format", "hex", "value format (hex, u64, string, cbor)")
	return cmd
}

func newChecksumCmd(conf *config) *cobra.Command {
	return &cobra.Command{
		Use:   "checksum [name]",
		Short: "Print the BLAKE2b-256 digest of an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := parseIndexName(args[0])
			if err != nil {
				return err
			}
			return withInspector(conf, func(in *inspect.Inspector) error {
				sum, err := in.Checksum(name)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(sum[:]))
				return nil
			})
		},
	}
}

func newStatsCmd(conf *config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Open the database and print its metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, closeDB, err := conf.openDatabase()
			if err != nil {
				return err
			}
			defer closeDB()
			d.WriteMetrics(cmd.OutOrStdout())
			return nil
		},
	}
}
