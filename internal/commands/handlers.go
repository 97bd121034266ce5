package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"vexbot/internal/dbinfo"
	"vexbot/internal/models"
	"vexbot/internal/storage"
	"vexbot/internal/vex"
	"vexbot/pkg/tgui"
)

// Store is what the chat commands read and write.
type Store interface {
	storage.Reader
	Subscribe(ctx context.Context, guild string, team models.TeamRef, user string) error
	Unsubscribe(ctx context.Context, guild string, team models.TeamRef, user string) (bool, error)
	ListSubs(ctx context.Context, guild string) ([]models.TeamSub, error)
}

type Handlers struct {
	store Store
}

func NewHandlers(store Store) *Handlers {
	return &Handlers{store: store}
}

func (h *Handlers) Commands() []Command {
	return []Command{
		{Name: "team", Description: "show a team", Usage: "/team [id] [program]", Handle: h.team},
		{Name: "event", Description: "show an event", Usage: "/event <sku>", Handle: h.event},
		{Name: "sub", Aliases: []string{"subscribe"}, Description: "get mentioned for a team", Usage: "/sub <team> [program]", Handle: h.subscribe},
		{Name: "unsub", Aliases: []string{"unsubscribe"}, Description: "stop mentions for a team", Usage: "/unsub <team> [program]", Handle: h.unsubscribe},
		{Name: "subs", Description: "list your subscriptions", Usage: "/subs", Handle: h.list},
	}
}

const invalidTeamText = "Please provide a valid team ID, such as <b>24B</b> or <b>BNS</b>."

// teamArg resolves the team a command refers to, falling back to the
// sender's display name. A trailing program name ("/sub 1234A viqc")
// selects the program.
func (h *Handlers) teamArg(ctx context.Context, req *Request) (models.TeamRef, bool, error) {
	args, program := req.Args, 0
	if n := len(args); n > 1 {
		if p, ok := dbinfo.ParseProgram(args[n-1]); ok {
			args, program = args[:n-1], p
		}
	}
	id := vex.ResolveTeamID(strings.Join(args, ""), req.FromName)
	if !vex.ValidTeamID(id) {
		return models.TeamRef{}, false, nil
	}
	ref, err := vex.ResolveTeamRef(ctx, h.store, id, program)
	if err != nil {
		return ref, true, fmt.Errorf("resolve team %s: %w", id, err)
	}
	return ref, true, nil
}

func label(ref models.TeamRef) string {
	return dbinfo.DecodeProgram(ref.Program) + " " + ref.ID
}

func (h *Handlers) team(ctx context.Context, req *Request) error {
	ref, ok, err := h.teamArg(ctx, req)
	if !ok {
		return req.Reply(ctx, invalidTeamText)
	}
	if err != nil {
		return err
	}
	teams, err := h.store.FindTeams(ctx, storage.TeamQuery{ID: ref.ID, Program: ref.Program})
	if err != nil {
		return fmt.Errorf("fetch team %s: %w", ref.Key(), err)
	}
	if len(teams) == 0 {
		return req.Reply(ctx, "That team ID has never been registered.")
	}
	return req.ReplyEmbed(ctx, vex.TeamEmbed(teams[0]))
}

func (h *Handlers) event(ctx context.Context, req *Request) error {
	if len(req.Args) == 0 {
		return req.Reply(ctx, "Usage: <code>/event &lt;sku&gt;</code>")
	}
	sku := strings.ToUpper(strings.TrimSpace(req.Args[0]))
	ev, err := h.store.GetEvent(ctx, sku)
	if err != nil {
		return fmt.Errorf("get event %s: %w", sku, err)
	}
	if ev == nil {
		return req.Reply(ctx, "No event found with SKU "+tgui.Code(sku).String()+".")
	}
	return req.ReplyEmbed(ctx, vex.EventEmbed(*ev))
}

func (h *Handlers) subscribe(ctx context.Context, req *Request) error {
	ref, ok, err := h.teamArg(ctx, req)
	if !ok {
		return req.Reply(ctx, invalidTeamText)
	}
	if err != nil {
		return err
	}
	if err := h.store.Subscribe(ctx, req.Guild(), ref, strconv.FormatInt(req.FromID, 10)); err != nil {
		return fmt.Errorf("subscribe %s: %w", ref.Key(), err)
	}
	return req.Reply(ctx, "You will be mentioned for "+tgui.B(label(ref)).String()+".")
}

func (h *Handlers) unsubscribe(ctx context.Context, req *Request) error {
	ref, ok, err := h.teamArg(ctx, req)
	if !ok {
		return req.Reply(ctx, invalidTeamText)
	}
	if err != nil {
		return err
	}
	removed, err := h.store.Unsubscribe(ctx, req.Guild(), ref, strconv.FormatInt(req.FromID, 10))
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", ref.Key(), err)
	}
	if !removed {
		return req.Reply(ctx, "You are not subscribed to "+tgui.B(label(ref)).String()+".")
	}
	return req.Reply(ctx, "Unsubscribed from "+tgui.B(label(ref)).String()+".")
}

func (h *Handlers) list(ctx context.Context, req *Request) error {
	subs, err := h.store.ListSubs(ctx, req.Guild())
	if err != nil {
		return fmt.Errorf("list subs: %w", err)
	}
	user := strconv.FormatInt(req.FromID, 10)
	var mine []string
	for _, s := range subs {
		for _, u := range s.Users {
			if u == user {
				mine = append(mine, tgui.B(label(s.Team)).String())
				break
			}
		}
	}
	if len(mine) == 0 {
		return req.Reply(ctx, "You have no team subscriptions here.")
	}
	return req.Reply(ctx, "Your teams: "+strings.Join(mine, ", "))
}
