package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"grove"
)

func main() {
	app := cli.App{
		Name:  "grove",
		Usage: "content-addressed ordered key-value trees",
	}

	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging",
		},
		&cli.StringFlag{
			Name:  "dir",
			Usage: "blob store directory",
			Value: ".grove",
		},
		&cli.StringFlag{
			Name:  "root",
			Usage: "root id of the tree to operate on (empty for a fresh tree)",
		},
		&cli.IntFlag{
			Name:  "fanout",
			Usage: "max keys per node",
			Value: grove.DefaultFanout,
		},
	}

	app.Commands = []*cli.Command{
		cmdSet,
		cmdGet,
		cmdDel,
		cmdScan,
		cmdDiff,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func openTree(cctx *cli.Context) (*grove.Tree[string, string], error) {
	logLevel := slog.LevelInfo
	if cctx.Bool("debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	store, err := grove.NewFileStore(cctx.String("dir"))
	if err != nil {
		return nil, err
	}
	cached, err := grove.NewCachedStore(store, grove.DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	tree := grove.New[string, string](grove.Ordered[string](),
		grove.WithStore(cached),
		grove.WithFanout(cctx.Int("fanout")),
		grove.WithLogger(slog.Default()),
	)
	if root := cctx.String("root"); root != "" {
		if err := tree.Load(root); err != nil {
			return nil, err
		}
	}
	return tree, nil
}

var cmdSet = &cli.Command{
	Name:      "set",
	Usage:     "bind a value to a key and print the new root id",
	ArgsUsage: "<key> <value>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("set needs a key and a value")
		}
		tree, err := openTree(cctx)
		if err != nil {
			return err
		}
		if _, err := tree.Set(cctx.Args().Get(0), cctx.Args().Get(1)); err != nil {
			return err
		}
		id, err := tree.Commit()
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var cmdGet = &cli.Command{
	Name:      "get",
	Usage:     "print the value bound to a key",
	ArgsUsage: "<key>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("get needs a key")
		}
		tree, err := openTree(cctx)
		if err != nil {
			return err
		}
		v, err := tree.Get(cctx.Args().First())
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	},
}

var cmdDel = &cli.Command{
	Name:      "del",
	Usage:     "remove a key and print the new root id",
	ArgsUsage: "<key>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 1 {
			return fmt.Errorf("del needs a key")
		}
		tree, err := openTree(cctx)
		if err != nil {
			return err
		}
		if _, err := tree.Delete(cctx.Args().First()); err != nil {
			return err
		}
		id, err := tree.Commit()
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var cmdScan = &cli.Command{
	Name:      "scan",
	Usage:     "print pairs in a key range",
	ArgsUsage: "[lo [hi]]",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "max pairs to print (0 for all)",
		},
	},
	Action: func(cctx *cli.Context) error {
		tree, err := openTree(cctx)
		if err != nil {
			return err
		}
		lo := cctx.Args().Get(0)
		hi := cctx.Args().Get(1)
		if cctx.NArg() < 2 {
			maxKey, ok, err := tree.MaxKey()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			hi = maxKey
		}
		limit := cctx.Int("limit")
		n := 0
		_, err = tree.ForRange(lo, hi, true, func(k, v string) bool {
			fmt.Printf("%s\t%s\n", k, v)
			n++
			return limit <= 0 || n < limit
		})
		return err
	},
}

var cmdDiff = &cli.Command{
	Name:      "diff",
	Usage:     "print pair-level differences between two committed roots",
	ArgsUsage: "<root-a> <root-b>",
	Action: func(cctx *cli.Context) error {
		if cctx.NArg() != 2 {
			return fmt.Errorf("diff needs two root ids")
		}
		a, err := openTree(cctx)
		if err != nil {
			return err
		}
		if err := a.Load(cctx.Args().Get(0)); err != nil {
			return err
		}
		b := a.Clone()
		if err := b.Load(cctx.Args().Get(1)); err != nil {
			return err
		}
		return a.DiffAgainst(b,
			func(k, v string) error {
				fmt.Printf("- %s\t%s\n", k, v)
				return nil
			},
			func(k, v string) error {
				fmt.Printf("+ %s\t%s\n", k, v)
				return nil
			},
			func(k, va, vb string) error {
				fmt.Printf("~ %s\t%s -> %s\n", k, va, vb)
				return nil
			},
		)
	},
}
