// Package dbinfo decodes the small integer codes stored in competition
// records (program, season, grade, skill type, round) into display labels,
// URLs and emoji.
package dbinfo

import (
	"fmt"
	"strconv"
	"strings"
)

// Program codes as stored in team/event/match documents.
const (
	ProgramVRC  = 1
	ProgramVEXU = 4
	ProgramVIQC = 41
)

// Round codes. Rounds in [RoundQuarterfinal, RoundOf128] are elimination
// rounds and carry an instance number.
const (
	RoundPractice      = 1
	RoundQualification = 2
	RoundQuarterfinal  = 3
	RoundSemifinal     = 4
	RoundFinal         = 5
	RoundOf16          = 6
	RoundOf32          = 7
	RoundOf128         = 8
	RoundTeamwork      = 9
)

type program struct {
	name  string
	emoji string
	slug  string
}

var programs = map[int]program{
	ProgramVRC:  {name: "VRC", emoji: "🤖", slug: "vex-robotics-competition"},
	ProgramVEXU: {name: "VEXU", emoji: "🎓", slug: "college-competition"},
	ProgramVIQC: {name: "VIQC", emoji: "🧩", slug: "vex-iq-competition"},
}

type season struct {
	name    string
	program int
}

// Known season ids. Unknown ids still decode to a usable label.
var seasons = map[int]season{
	102: {"VRC 2016-2017: Starstruck", ProgramVRC},
	103: {"VEXU 2016-2017: Starstruck", ProgramVEXU},
	115: {"VRC 2017-2018: In the Zone", ProgramVRC},
	116: {"VEXU 2017-2018: In the Zone", ProgramVEXU},
	119: {"VRC 2018-2019: Turning Point", ProgramVRC},
	120: {"VEXU 2018-2019: Turning Point", ProgramVEXU},
	130: {"VRC 2019-2020: Tower Takeover", ProgramVRC},
	131: {"VEXU 2019-2020: Tower Takeover", ProgramVEXU},
	139: {"VRC 2020-2021: Change Up", ProgramVRC},
	140: {"VEXU 2020-2021: Change Up", ProgramVEXU},
	154: {"VRC 2021-2022: Tipping Point", ProgramVRC},
	155: {"VEXU 2021-2022: Tipping Point", ProgramVEXU},
	173: {"VRC 2022-2023: Spin Up", ProgramVRC},
	175: {"VEXU 2022-2023: Spin Up", ProgramVEXU},
	181: {"VRC 2023-2024: Over Under", ProgramVRC},
	182: {"VEXU 2023-2024: Over Under", ProgramVEXU},
	190: {"VRC 2024-2025: High Stakes", ProgramVRC},
	191: {"VEXU 2024-2025: High Stakes", ProgramVEXU},
}

var grades = []string{"All", "Elementary", "Middle School", "High School", "College"}

var skills = []string{"Driver", "Programming", "Combined"}

var rounds = map[int]string{
	RoundPractice:      "P",
	RoundQualification: "Q",
	RoundQuarterfinal:  "QF",
	RoundSemifinal:     "SF",
	RoundFinal:         "F",
	RoundOf16:          "R16",
	RoundOf32:          "R32",
	RoundOf128:         "R128",
	RoundTeamwork:      "T",
}

// DecodeProgram returns the short program name used in robotevents URLs.
func DecodeProgram(code int) string {
	if p, ok := programs[code]; ok {
		return p.name
	}
	return strconv.Itoa(code)
}

// ParseProgram is the inverse of DecodeProgram, case-insensitive.
func ParseProgram(name string) (int, bool) {
	name = strings.TrimSpace(name)
	for code, p := range programs {
		if strings.EqualFold(p.name, name) {
			return code, true
		}
	}
	return 0, false
}

func DecodeProgramEmoji(code int) string {
	if p, ok := programs[code]; ok {
		return p.emoji
	}
	return "🏁"
}

func DecodeSeason(id int) string {
	if s, ok := seasons[id]; ok {
		return s.name
	}
	return "Season " + strconv.Itoa(id)
}

// DecodeSeasonURL links to the season's competition page on robotevents.
func DecodeSeasonURL(id int) string {
	slug := programs[ProgramVRC].slug
	if s, ok := seasons[id]; ok {
		if p, ok := programs[s.program]; ok {
			slug = p.slug
		}
	}
	return fmt.Sprintf("https://www.robotevents.com/robot-competitions/%s?seasonId=%d", slug, id)
}

func DecodeGrade(code int) string {
	if code >= 0 && code < len(grades) {
		return grades[code]
	}
	return "Unknown"
}

func DecodeSkill(code int) string {
	if code >= 0 && code < len(skills) {
		return skills[code]
	}
	return "Unknown"
}

func DecodeRound(code int) string {
	if r, ok := rounds[code]; ok {
		return r
	}
	return "R" + strconv.Itoa(code)
}

// IsEliminationRound reports whether matches in the round are numbered
// "<instance>-<number>".
func IsEliminationRound(code int) bool {
	return code >= RoundQuarterfinal && code <= RoundOf128
}

// EmojiToURL returns a Twemoji image URL for a unicode emoji.
func EmojiToURL(emoji string) string {
	if emoji == "" {
		return ""
	}
	parts := make([]string, 0, 2)
	for _, r := range emoji {
		if r == 0xfe0f {
			continue
		}
		parts = append(parts, strconv.FormatInt(int64(r), 16))
	}
	return "https://cdn.jsdelivr.net/gh/twitter/twemoji@14.0.2/assets/72x72/" + strings.Join(parts, "-") + ".png"
}
