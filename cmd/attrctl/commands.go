package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/asakaida/catalogattr/pkg/client"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// cli holds the flags shared by every subcommand
type cli struct {
	addr    string
	entity  int64
	output  string
	timeout time.Duration
	out     io.Writer

	// dial is replaced in tests
	dial func(addr string) (*client.Client, func() error, error)
}

func defaultDial(addr string) (*client.Client, func() error, error) {
	c, conn, err := client.Dial(addr)
	if err != nil {
		return nil, nil, err
	}
	return c, conn.Close, nil
}

func newRootCmd(out io.Writer) *cobra.Command {
	return newRootCmdWithDialer(out, defaultDial)
}

func newRootCmdWithDialer(out io.Writer, dial func(string) (*client.Client, func() error, error)) *cobra.Command {
	c := &cli{out: out, dial: dial}

	root := &cobra.Command{
		Use:           "attrctl",
		Short:         "Command line client for the catalogattr attribute service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.output != "yaml" && c.output != "json" {
				return fmt.Errorf("unsupported output format %q (want yaml or json)", c.output)
			}
			return nil
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVar(&c.addr, "addr", "localhost:50051", "Address of the attribute service")
	flags.Int64Var(&c.entity, "entity", 0, "Entity to act as (0 uses the server default)")
	flags.StringVarP(&c.output, "output", "o", "yaml", "Output format (yaml, json)")
	flags.DurationVar(&c.timeout, "timeout", 10*time.Second, "Per-call timeout")

	root.AddCommand(
		c.getCmd(),
		c.listCmd(),
		c.createCmd(),
		c.updateCmd(),
		c.deleteCmd(),
		c.countCmd(),
		c.moveCmd("move-up", "Swap an attribute with the one ranked above it", (*client.Client).MoveUp),
		c.moveCmd("move-down", "Swap an attribute with the one ranked below it", (*client.Client).MoveDown),
		c.normalizeCmd(),
		c.reorderCmd(),
	)

	return root
}

// call dials the service and runs fn with a scoped, time-limited context
func (c *cli) call(cmd *cobra.Command, fn func(context.Context, *client.Client) error) error {
	cl, closeFn, err := c.dial(c.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.addr, err)
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()
	if c.entity > 0 {
		ctx = client.WithEntity(ctx, c.entity)
	}

	return fn(ctx, cl)
}

func (c *cli) print(v any) error {
	switch c.output {
	case "json":
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(c.out)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("attribute id must be a positive integer, got %q", s)
	}
	return id, nil
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one attribute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.call(cmd, func(ctx context.Context, cl *client.Client) error {
				attr, err := cl.Fetch(ctx, id)
				if err != nil {
					return err
				}
				return c.print(attr)
			})
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List visible attributes in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(cmd, func(ctx context.Context, cl *client.Client) error {
				attrs, err := cl.List(ctx, filter)
				if err != nil {
					return err
				}
				return c.print(attrs)
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", `CEL predicate over "attribute", e.g. attribute.ref.startsWith("CO")`)
	return cmd
}

func (c *cli) createCmd() *cobra.Command {
	var rank int
	cmd := &cobra.Command{
		Use:   "create <ref> <label>",
		Short: "Create an attribute",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(cmd, func(ctx context.Context, cl *client.Client) error {
				id, err := cl.Create(ctx, args[0], args[1], rank)
				if err != nil {
					return err
				}
				return c.print(map[string]int64{"id": id})
			})
		},
	}
	cmd.Flags().IntVar(&rank, "rank", 0, "Initial display rank")
	return cmd
}

func (c *cli) updateCmd() *cobra.Command {
	var (
		ref   string
		label string
		rank  int
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change the ref, label or rank of an attribute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.call(cmd, func(ctx context.Context, cl *client.Client) error {
				attr, err := cl.Fetch(ctx, id)
				if err != nil {
					return err
				}
				if cmd.Flags().Changed("ref") {
					attr.Ref = ref
				}
				if cmd.Flags().Changed("label") {
					attr.Label = label
				}
				if cmd.Flags().Changed("rank") {
					attr.Rank = rank
				}
				if err := cl.Update(ctx, attr); err != nil {
					return err
				}
				return c.print(attr)
			})
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "New reference code")
	cmd.Flags().StringVar(&label, "label", "", "New label")
	cmd.Flags().IntVar(&rank, "rank", 0, "New display rank")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an attribute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.call(cmd, func(ctx context.Context, cl *client.Client) error {
				return cl.Delete(ctx, id)
			})
		},
	}
}

func (c *cli) countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count <id>",
		Short: "Count child products using an attribute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.call(cmd, func(ctx context.Context, cl *client.Client) error {
				n, err := cl.CountChildProducts(ctx, id)
				if err != nil {
					return err
				}
				return c.print(map[string]int64{"child_products": n})
			})
		},
	}
}

func (c *cli) moveCmd(use, short string, move func(*client.Client, context.Context, int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.call(cmd, func(ctx context.Context, cl *client.Client) error {
				return move(cl, ctx, id)
			})
		},
	}
}

func (c *cli) normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize",
		Short: "Renumber the entity's ranks to 1..N",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.call(cmd, func(ctx context.Context, cl *client.Client) error {
				return cl.Normalize(ctx)
			})
		},
	}
}

func (c *cli) reorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id> [id...]",
		Short: "Assign ranks 0..N-1 following the given id order",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, len(args))
			for i, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids[i] = id
			}
			return c.call(cmd, func(ctx context.Context, cl *client.Client) error {
				return cl.UpdateOrder(ctx, ids)
			})
		},
	}
}
