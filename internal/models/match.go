package models

import (
	"encoding/json"
	"time"
)

// Score is a red/blue score pair. Stored documents always carry both
// halves or neither.
type Score struct {
	Red  int
	Blue int
}

// MatchState is the lifecycle stage of a match. It is one of Scheduled,
// Predicted, Played or PlayedWithPrediction.
type MatchState interface {
	matchState()
}

type Scheduled struct{}

type Predicted struct {
	Predicted Score
}

type Played struct {
	Actual Score
}

type PlayedWithPrediction struct {
	Actual    Score
	Predicted Score
}

func (Scheduled) matchState()            {}
func (Predicted) matchState()            {}
func (Played) matchState()               {}
func (PlayedWithPrediction) matchState() {}

// ActualScore returns the played score, if any.
func ActualScore(s MatchState) (Score, bool) {
	switch v := s.(type) {
	case Played:
		return v.Actual, true
	case PlayedWithPrediction:
		return v.Actual, true
	}
	return Score{}, false
}

// PredictedScore returns the predicted score, if any.
func PredictedScore(s MatchState) (Score, bool) {
	switch v := s.(type) {
	case Predicted:
		return v.Predicted, true
	case PlayedWithPrediction:
		return v.Predicted, true
	}
	return Score{}, false
}

// NewMatchState builds the state variant from optional score pairs.
func NewMatchState(actual, predicted *Score) MatchState {
	switch {
	case actual != nil && predicted != nil:
		return PlayedWithPrediction{Actual: *actual, Predicted: *predicted}
	case actual != nil:
		return Played{Actual: *actual}
	case predicted != nil:
		return Predicted{Predicted: *predicted}
	}
	return Scheduled{}
}

type MatchKey struct {
	Event    string `json:"event" firestore:"event"`
	Division string `json:"division" firestore:"division"`
	Round    int    `json:"round" firestore:"round"`
	Instance int    `json:"instance" firestore:"instance"`
	Number   int    `json:"number" firestore:"number"`
}

// Alliance holds up to three team slots; empty slots are "".
type Alliance struct {
	Teams   [3]string
	Sitting string
}

// Active returns the non-empty slots that are not sitting out.
func (a Alliance) Active() []string {
	out := make([]string, 0, 3)
	for _, t := range a.Teams {
		if t != "" && t != a.Sitting {
			out = append(out, t)
		}
	}
	return out
}

type Match struct {
	Key     MatchKey
	Program int
	Red     Alliance
	Blue    Alliance
	State   MatchState
	Start   *time.Time
	Updated time.Time
}

// Scored reports whether the match has an actual result.
func (m Match) Scored() bool {
	_, ok := ActualScore(m.State)
	return ok
}

// Slots returns all six alliance slots, red first.
func (m Match) Slots() []string {
	return []string{m.Red.Teams[0], m.Red.Teams[1], m.Red.Teams[2], m.Blue.Teams[0], m.Blue.Teams[1], m.Blue.Teams[2]}
}

// MatchDoc is the stored shape of a match: flat alliance slots and
// optional score fields.
type MatchDoc struct {
	Key           MatchKey   `json:"_id" firestore:"_id"`
	Program       int        `json:"prog" firestore:"prog"`
	Red           string     `json:"red,omitempty" firestore:"red,omitempty"`
	Red2          string     `json:"red2,omitempty" firestore:"red2,omitempty"`
	Red3          string     `json:"red3,omitempty" firestore:"red3,omitempty"`
	RedSit        string     `json:"redSit,omitempty" firestore:"redSit,omitempty"`
	Blue          string     `json:"blue,omitempty" firestore:"blue,omitempty"`
	Blue2         string     `json:"blue2,omitempty" firestore:"blue2,omitempty"`
	Blue3         string     `json:"blue3,omitempty" firestore:"blue3,omitempty"`
	BlueSit       string     `json:"blueSit,omitempty" firestore:"blueSit,omitempty"`
	RedScore      *int       `json:"redScore,omitempty" firestore:"redScore,omitempty"`
	BlueScore     *int       `json:"blueScore,omitempty" firestore:"blueScore,omitempty"`
	RedScorePred  *int       `json:"redScorePred,omitempty" firestore:"redScorePred,omitempty"`
	BlueScorePred *int       `json:"blueScorePred,omitempty" firestore:"blueScorePred,omitempty"`
	Start         *time.Time `json:"start,omitempty" firestore:"start,omitempty"`
	Updated       time.Time  `json:"updated" firestore:"updated"`
}

func pair(red, blue *int) *Score {
	if red == nil || blue == nil {
		return nil
	}
	return &Score{Red: *red, Blue: *blue}
}

// Match converts the stored document to a Match. A score pair with only
// one half present is treated as absent.
func (d MatchDoc) Match() Match {
	return Match{
		Key:     d.Key,
		Program: d.Program,
		Red:     Alliance{Teams: [3]string{d.Red, d.Red2, d.Red3}, Sitting: d.RedSit},
		Blue:    Alliance{Teams: [3]string{d.Blue, d.Blue2, d.Blue3}, Sitting: d.BlueSit},
		State:   NewMatchState(pair(d.RedScore, d.BlueScore), pair(d.RedScorePred, d.BlueScorePred)),
		Start:   d.Start,
		Updated: d.Updated,
	}
}

// Doc converts a Match to its stored document.
func (m Match) Doc() MatchDoc {
	d := MatchDoc{
		Key:     m.Key,
		Program: m.Program,
		Red:     m.Red.Teams[0],
		Red2:    m.Red.Teams[1],
		Red3:    m.Red.Teams[2],
		RedSit:  m.Red.Sitting,
		Blue:    m.Blue.Teams[0],
		Blue2:   m.Blue.Teams[1],
		Blue3:   m.Blue.Teams[2],
		BlueSit: m.Blue.Sitting,
		Start:   m.Start,
		Updated: m.Updated,
	}
	if s, ok := ActualScore(m.State); ok {
		d.RedScore, d.BlueScore = intPtr(s.Red), intPtr(s.Blue)
	}
	if s, ok := PredictedScore(m.State); ok {
		d.RedScorePred, d.BlueScorePred = intPtr(s.Red), intPtr(s.Blue)
	}
	return d
}

func intPtr(v int) *int { return &v }

func (m Match) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Doc())
}

func (m *Match) UnmarshalJSON(b []byte) error {
	var d MatchDoc
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	*m = d.Match()
	return nil
}
