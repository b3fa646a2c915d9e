package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/angelmondragon/localbiz-backend/internal/bootstrap"
	"github.com/angelmondragon/localbiz-backend/pkg/db"
	"github.com/angelmondragon/localbiz-backend/pkg/migrate"
)

const usage = `usage: migrate [flags] <command>

commands:
  up                apply pending migrations
  down              roll back the latest migration
  to <version>      migrate up or down to version
  status            list migrations and whether they are applied
  version           print the latest applied version
  create <name>     write a new empty migration into -dir
  validate          check migration file names and sections
`

func main() {
	dir := flag.String("dir", "", "read migrations from this directory instead of the embedded set")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command, args := flag.Arg(0), flag.Args()[1:]

	switch command {
	case "create":
		if len(args) != 1 {
			fail("create needs a migration name")
		}
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.Create(target, args[0], time.Now())
		if err != nil {
			fail(err.Error())
		}
		fmt.Println(path)
		return
	case "validate":
		if err := migrate.Validate(migrate.Source(*dir)); err != nil {
			fail(err.Error())
		}
		fmt.Println("ok")
		return
	}

	rt := bootstrap.Start("migrate")
	defer rt.Close()
	ctx := rt.Logger.WithFields(context.Background(), map[string]any{"command": command, "env": rt.Config.App.Env})

	client, err := db.New(ctx, rt.Config.DB, rt.Logger)
	rt.Check("database", err)
	defer client.Close()
	sqlDB, err := client.SQL()
	rt.Check("sql handle", err)
	migrator, err := migrate.New(sqlDB, migrate.Source(*dir))
	rt.Check("migrator", err)

	var steps []migrate.Step
	switch command {
	case "up":
		steps, err = migrator.Up(ctx)
	case "down":
		steps, err = migrator.Down(ctx)
	case "to":
		if len(args) != 1 {
			fail("to needs a version (YYYYMMDDHHMMSS)")
		}
		version, perr := strconv.ParseInt(args[0], 10, 64)
		if perr != nil {
			fail(fmt.Sprintf("invalid version %q", args[0]))
		}
		steps, err = migrator.To(ctx, version)
	case "status":
		states, serr := migrator.Status(ctx)
		rt.Check("status", serr)
		for _, s := range states {
			mark := "pending"
			if s.Applied {
				mark = "applied"
			}
			fmt.Printf("%-8s %d %s\n", mark, s.Version, s.Path)
		}
		return
	case "version":
		v, verr := migrator.Version(ctx)
		rt.Check("version", verr)
		fmt.Println(v)
		return
	default:
		flag.Usage()
		os.Exit(2)
	}

	for _, s := range steps {
		fmt.Printf("%-4s %d %s (%dms)\n", s.Direction, s.Version, s.Path, s.Millis)
	}
	if err != nil {
		rt.Fatal("migrate "+command, err)
	}
}

func fail(msg string) {
	fmt.Fprintln(os.Stderr, "migrate:", msg)
	os.Exit(1)
}
