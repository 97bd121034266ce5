package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/jedib0t/go-pretty/v6/table"

	"vexbot/internal/app"
	"vexbot/internal/config"
	"vexbot/internal/storage"
	logx "vexbot/pkg/logx"
)

type globalCmd struct {
	Config string `help:"Bot config file (json or yaml); its storage section is used." env:"VEXBOT_CONFIG" default:"./config.json" type:"path"`

	out io.Writer
}

func (g *globalCmd) openStore(ctx context.Context) (storage.Store, error) {
	cfg, err := config.NewManager(g.Config).Load()
	if err != nil {
		return nil, err
	}
	st, _, err := app.OpenStorage(ctx, cfg, logx.NewConsole("warn"))
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errors.New("storage is disabled in " + g.Config)
	}
	return st, nil
}

func (g *globalCmd) table(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(g.out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

var CLI struct {
	globalCmd

	Import  importCmd  `cmd:"" help:"Load teams, events, matches, awards, skills and subscriptions from a JSON dump."`
	Team    teamCmd    `cmd:"" help:"Show every season of a team."`
	Changes changesCmd `cmd:"" help:"List recent feed entries."`

	Subs struct {
		Add addSubCmd `cmd:"" help:"Subscribe a user to a team in a chat."`
		Rm  rmSubCmd  `cmd:"" help:"Unsubscribe a user from a team in a chat."`
		Ls  lsSubsCmd `cmd:"" help:"List a chat's subscriptions."`
	} `cmd:"" help:"Manage team subscriptions."`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Name("vexctl"), kong.Description("Manage the vexbot document store."))
	CLI.globalCmd.out = os.Stdout
	err := ctx.Run(&CLI.globalCmd)
	ctx.FatalIfErrorf(err)
}
