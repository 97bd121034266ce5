package vex

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"vexbot/internal/dbinfo"
	"vexbot/internal/embed"
	"vexbot/internal/models"
	"vexbot/internal/storage"
	logx "vexbot/pkg/logx"
	"vexbot/pkg/tgui"
)

const siteURL = "https://robotevents.com"

// AllianceEmojis mark the red and blue alliances.
var AllianceEmojis = [2]string{"🔴", "🔵"}

func TeamURL(program int, id string) string {
	return siteURL + "/teams/" + dbinfo.DecodeProgram(program) + "/" + id
}

func EventURL(sku string) string {
	return siteURL + "/" + sku + ".html"
}

// MaskedTeamURL renders the team id as a link to its roster page.
func MaskedTeamURL(program int, id string) tgui.H {
	return tgui.Link(id, TeamURL(program, id))
}

func TeamEmbed(t models.Team) *embed.Embed {
	e := embed.New(embed.Green).
		SetAuthor(t.ID, TeamURL(t.Program, t.ID), dbinfo.EmojiToURL(dbinfo.DecodeProgramEmoji(t.Program))).
		SetTitle(dbinfo.DecodeSeason(t.Season)).
		SetURL(dbinfo.DecodeSeasonURL(t.Season))
	if t.Name != "" {
		e.AddField("Team Name", tgui.Esc(t.Name), true)
	}
	if t.Robot != "" {
		e.AddField("Robot Name", tgui.Esc(t.Robot), true)
	}
	if t.Org != "" {
		e.AddField("Organization", tgui.Esc(t.Org), true)
	}
	if loc := TeamLocation(t); loc != "" {
		e.AddField("Location", tgui.Esc(loc), true)
	}
	if t.Grade != 0 {
		e.AddField("Grade", tgui.Esc(dbinfo.DecodeGrade(t.Grade)), true)
	}
	return e
}

// Price formats a cost in cents.
func Price(cents int) string {
	return fmt.Sprintf("$%.2f", float64(cents)/100)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func EventEmbed(ev models.Event) *embed.Embed {
	title := dbinfo.DecodeSeason(ev.Season)
	if ev.TSA {
		title = "TSA " + title
	}
	e := embed.New(embed.Orange).
		SetAuthor(ev.Name, EventURL(ev.SKU), dbinfo.EmojiToURL(dbinfo.DecodeProgramEmoji(ev.Program))).
		SetTitle(title).
		SetURL(dbinfo.DecodeSeasonURL(ev.Season)).
		SetDescription(tgui.Esc(ev.Type))
	if !ev.Start.IsZero() {
		e.SetTimestamp(ev.Start)
	}
	return e.
		AddField("Capacity", tgui.Esc(fmt.Sprintf("%d/%d", ev.Size, ev.Capacity)), true).
		AddField("Price", tgui.Esc(Price(ev.Cost)), true).
		AddField("Grade", tgui.Esc(dbinfo.DecodeGrade(ev.Grade)), true).
		AddField("Skills Offered?", tgui.Esc(yesNo(ev.Skills)), true)
}

// MatchString labels a match: "Q12" for qualifications, "QF 2-3" for
// elimination rounds.
func MatchString(round, instance, number int) string {
	label := dbinfo.DecodeRound(round)
	if dbinfo.IsEliminationRound(round) {
		label += " " + strconv.Itoa(instance) + "-"
	}
	return label + strconv.Itoa(number)
}

// TeamsString renders an alliance as space-separated team links. Only a
// scored alliance of more than two teams gets emphasis: the sitting team
// is italic and the rest are bold.
func TeamsString(program int, teams []string, sitting string, scored bool) tgui.H {
	present := make([]string, 0, len(teams))
	for _, t := range teams {
		if t != "" {
			present = append(present, t)
		}
	}
	emphasis := scored && len(present) > 2
	parts := make([]tgui.H, 0, len(present))
	for _, t := range present {
		link := MaskedTeamURL(models.ProgramForTeam(t, program), t)
		switch {
		case !emphasis:
			parts = append(parts, link)
		case t == sitting:
			parts = append(parts, tgui.Italic(link))
		default:
			parts = append(parts, tgui.Bold(link))
		}
	}
	return tgui.JoinH(" ", parts...)
}

// MatchColor: white until scored, blue for VIQC (one shared score), grey
// for a tie, otherwise the winning alliance.
func MatchColor(m models.Match) embed.Color {
	s, ok := models.ActualScore(m.State)
	switch {
	case !ok:
		return embed.White
	case m.Program == dbinfo.ProgramVIQC:
		return embed.Blue
	case s.Red == s.Blue:
		return embed.Grey
	case s.Red > s.Blue:
		return embed.Red
	default:
		return embed.Blue
	}
}

func allianceFieldNames(state models.MatchState) (red, blue string) {
	red, blue = AllianceEmojis[0]+" Red", AllianceEmojis[1]+" Blue"
	actual, hasActual := models.ActualScore(state)
	pred, hasPred := models.PredictedScore(state)
	if !hasActual && !hasPred {
		return red, blue
	}
	red, blue = red+":", blue+":"
	if hasActual {
		red += fmt.Sprintf(" %d", actual.Red)
		blue += fmt.Sprintf(" %d", actual.Blue)
	}
	if hasPred {
		red += fmt.Sprintf(" (%d predicted)", pred.Red)
		blue += fmt.Sprintf(" (%d predicted)", pred.Blue)
	}
	return red, blue
}

// MatchEmbed formats a match of the given event.
func MatchEmbed(m models.Match, ev models.Event) *embed.Embed {
	scored := m.Scored()
	redName, blueName := allianceFieldNames(m.State)
	e := embed.New(MatchColor(m)).
		SetAuthor(ev.Name, EventURL(ev.SKU), "").
		SetTitle(m.Key.Division).
		SetURL(EventURL(ev.SKU)+"#tab-results").
		SetDescription(tgui.Esc(MatchString(m.Key.Round, m.Key.Instance, m.Key.Number))).
		AddField(redName, TeamsString(m.Program, m.Red.Teams[:], m.Red.Sitting, scored), true).
		AddField(blueName, TeamsString(m.Program, m.Blue.Teams[:], m.Blue.Sitting, scored), true)
	if m.Start != nil {
		e.SetTimestamp(*m.Start)
	}
	return e
}

// MatchScoredNotification is the one-line summary of a played match, score
// centered: "Q12 229A 229B🔴10-4🔵515C 515A".
func MatchScoredNotification(m models.Match) string {
	s, _ := models.ActualScore(m.State)
	red, blue := m.Red.Active(), m.Blue.Active()

	var b strings.Builder
	b.WriteString(MatchString(m.Key.Round, m.Key.Instance, m.Key.Number))
	b.WriteString(" ")
	if len(red) > 0 {
		b.WriteString(red[0])
	}
	if len(red) > 1 {
		b.WriteString(" " + red[1])
	}
	fmt.Fprintf(&b, "%s%d-%d%s", AllianceEmojis[0], s.Red, s.Blue, AllianceEmojis[1])
	if len(blue) > 1 {
		b.WriteString(blue[1] + " ")
	}
	if len(blue) > 0 {
		b.WriteString(blue[0])
	}
	return b.String()
}

// AwardEmbed resolves the award's event and the events it qualifies for in
// one lookup. Qualifying events that are not found stay as plain SKUs. A
// failed lookup is logged and yields nil.
func AwardEmbed(ctx context.Context, r storage.Reader, log logx.Logger, a models.Award) *embed.Embed {
	skus := append([]string{a.Event}, a.Qualifies...)
	found, err := r.EventNames(ctx, skus)
	if err != nil {
		log.Error("award event lookup failed", logx.String("event", a.Event), logx.String("award", a.Name), logx.Err(err))
		return nil
	}
	names := make(map[string]string, len(found))
	for _, n := range found {
		names[n.SKU] = n.Name
	}

	e := embed.New(embed.Purple).
		SetAuthor(names[a.Event], "", "").
		SetTitle(a.Name).
		SetURL(EventURL(a.Event) + "#tab-awards")
	if a.Team != nil {
		e.AddField("Team", tgui.JoinH(" ",
			tgui.Raw(dbinfo.DecodeProgramEmoji(a.Team.Program)),
			MaskedTeamURL(a.Team.Program, a.Team.ID),
		), true)
	}
	if len(a.Qualifies) > 0 {
		links := make([]tgui.H, 0, len(a.Qualifies))
		for _, sku := range a.Qualifies {
			if name, ok := names[sku]; ok && sku != a.Event {
				links = append(links, tgui.Link(name, EventURL(sku)))
			} else {
				links = append(links, tgui.Esc(sku))
			}
		}
		e.AddField("Qualifies for", tgui.JoinH("\n", links...), true)
	}
	return e
}

// SkillsEmbed returns nil when the event cannot be loaded; the failure is
// logged here and callers skip the result.
func SkillsEmbed(ctx context.Context, r storage.Reader, log logx.Logger, sk models.Skill) *embed.Embed {
	ev, err := r.GetEvent(ctx, sk.Event)
	if err != nil {
		log.Error("skills event lookup failed", logx.String("event", sk.Event), logx.String("team", sk.Team.ID), logx.Err(err))
		return nil
	}
	if ev == nil {
		log.Warn("skills event not found", logx.String("event", sk.Event), logx.String("team", sk.Team.ID))
		return nil
	}
	program := dbinfo.DecodeProgram(sk.Team.Program)
	return embed.New(embed.Gold).
		SetAuthor(ev.Name, EventURL(ev.SKU)+"#tab-results", "").
		SetTitle(program+" "+sk.Team.ID).
		SetURL(TeamURL(sk.Team.Program, sk.Team.ID)).
		AddField("Type", tgui.Esc(dbinfo.DecodeSkill(sk.Type)), true).
		AddField("Rank", tgui.Esc(strconv.Itoa(sk.Rank)), true).
		AddField("Score", tgui.Esc(strconv.Itoa(sk.Score)), true).
		AddField("Attempts", tgui.Esc(strconv.Itoa(sk.Attempts)), true)
}

func quoted(v string) tgui.H {
	q := tgui.B(`"`)
	return q + tgui.Esc(tgui.Unescape(v)) + q
}

// TeamChangeEmbed announces an edit to a team's profile.
func TeamChangeEmbed(c models.TeamChange) *embed.Embed {
	program := dbinfo.DecodeProgram(c.Team.Program)
	var change tgui.H
	switch {
	case c.Old == "":
		change = tgui.Esc("added their "+c.Field+" ") + quoted(c.New)
	case c.New == "":
		change = tgui.Esc("removed their "+c.Field+" ") + quoted(c.Old)
	default:
		change = tgui.Esc("changed their "+c.Field+" from ") + quoted(c.Old) + " to " + quoted(c.New)
	}
	link := tgui.Link(program+" "+c.Team.ID, TeamURL(c.Team.Program, c.Team.ID))
	return embed.New(embed.Green).SetDescription(link + " " + change + ".")
}
