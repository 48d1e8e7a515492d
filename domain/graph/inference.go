package graph

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/emergent-company/emergent.graphcore/pkg/typeql"
)

// ErrNoRelation is returned by Bind when an explanation pattern carries no
// relation statement, such as a bare attribute lookup.
var ErrNoRelation = errors.New("graph: pattern has no relation statement")

const inferencePrefix = "inf_"

// Player is one role player of a bound relation statement.
type Player struct {
	Role string
	Var  string
}

// BoundPattern is an explanation pattern whose relation statement is
// guaranteed to bind a named variable.
type BoundPattern struct {
	Statements []string
	RelVar     string
	Type       string
	Players    []Player
}

// Text renders the pattern as match-body text.
func (b BoundPattern) Text() string { return strings.Join(b.Statements, " ") }

func (b BoundPattern) playerVars() []string {
	seen := make(map[string]bool, len(b.Players))
	out := make([]string, 0, len(b.Players))
	for _, p := range b.Players {
		if !seen[p.Var] {
			seen[p.Var] = true
			out = append(out, p.Var)
		}
	}
	return out
}

// InferenceRewriter is the engine-specific textual surgery done on
// explanation patterns.
type InferenceRewriter interface {
	// Bind names the relation statement of pattern, using rel_<n> when
	// the engine left it anonymous.
	Bind(pattern string, n int) (BoundPattern, error)
	// Pin replaces the endpoint type and id constraints of b with the
	// concrete ids, producing a pattern that matches only that relation.
	Pin(b BoundPattern, ids map[string]string) (string, error)
	// Parse re-validates pattern text decoded from an inference token.
	Parse(text string) (BoundPattern, error)
}

type graqlRewriter struct{}

// NewGraqlRewriter returns the rewriter for Graql 1.x explanation patterns.
func NewGraqlRewriter() InferenceRewriter { return graqlRewriter{} }

const (
	varName   = `[A-Za-z0-9_\-]+`
	labelName = `[A-Za-z_][A-Za-z0-9_\-]*`
)

var (
	relStmt    = regexp.MustCompile(`^(?:\$(` + varName + `)\s+)?\(\s*([^()]*?)\s*\)\s*(?:isa\s+(` + labelName + `))?\s*(.*?)\s*;$`)
	playerExpr = regexp.MustCompile(`^(?:(` + labelName + `)\s*:\s*)?\$(` + varName + `)$`)
	typeStmt   = regexp.MustCompile(`^\$(` + varName + `)\s+(isa|id)\s+(` + varName + `)\s*;$`)
	hasStmt    = regexp.MustCompile(`^\$(` + varName + `)\s+has\s+` + labelName + `\s+(?:\$` + varName + `|"(?:[^"\\]|\\.)*"|-?[0-9]+(?:\.[0-9]+)?|true|false|[0-9]{4}-[0-9]{2}-[0-9]{2}(?:T[0-9:.]+)?)\s*;$`)
)

var subjectExpr = regexp.MustCompile(`^\$(` + varName + `)\s+(.*);$`)

// splitProperties rewrites "$v p1, p2;" as "$v p1; $v p2;". Commas inside
// parentheses and string literals do not split.
func splitProperties(stmts []string) []string {
	out := make([]string, 0, len(stmts))
	for _, st := range stmts {
		m := subjectExpr.FindStringSubmatch(st)
		if m == nil {
			out = append(out, st)
			continue
		}
		for _, prop := range splitTopLevel(m[2], ',') {
			out = append(out, "$"+m[1]+" "+prop+";")
		}
	}
	return out
}

func splitTopLevel(s string, sep rune) []string {
	var (
		out     []string
		cur     strings.Builder
		depth   int
		quoted  bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case !quoted && r == '(':
			depth++
		case !quoted && r == ')':
			depth--
		case !quoted && depth == 0 && r == sep:
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	return append(out, strings.TrimSpace(cur.String()))
}

// splitStatements splits pattern text on top-level semicolons, ignoring
// those inside string literals. Outer braces are dropped; nested braces
// (disjunctions, negations) are rejected.
func splitStatements(pattern string) ([]string, error) {
	p := strings.TrimSpace(pattern)
	if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
		p = strings.TrimSpace(p[1 : len(p)-1])
	}

	var (
		out     []string
		cur     strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range p {
		cur.WriteRune(r)
		switch {
		case escaped:
			escaped = false
		case quoted && r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case !quoted && (r == '{' || r == '}'):
			return nil, fmt.Errorf("%w: nested block in pattern", ErrMalformedQuery)
		case !quoted && r == ';':
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		}
	}
	if quoted {
		return nil, fmt.Errorf("%w: unterminated string in pattern", ErrMalformedQuery)
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		out = append(out, rest+";")
	}
	return out, nil
}

func parsePlayers(tuple string) ([]Player, error) {
	var players []Player
	for _, part := range strings.Split(tuple, ",") {
		m := playerExpr.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return nil, fmt.Errorf("%w: role player %q", ErrMalformedQuery, part)
		}
		players = append(players, Player{Role: m[1], Var: m[2]})
	}
	if len(players) < 2 {
		return nil, fmt.Errorf("%w: relation with fewer than two players", ErrMalformedQuery)
	}
	return players, nil
}

func (graqlRewriter) Bind(pattern string, n int) (BoundPattern, error) {
	stmts, err := splitStatements(pattern)
	if err != nil {
		return BoundPattern{}, err
	}

	idx := -1
	var m []string
	for i, st := range stmts {
		if m = relStmt.FindStringSubmatch(st); m != nil {
			idx = i
			break
		}
	}
	if idx < 0 {
		return BoundPattern{}, ErrNoRelation
	}

	players, err := parsePlayers(m[2])
	if err != nil {
		return BoundPattern{}, err
	}
	b := BoundPattern{Statements: stmts, RelVar: m[1], Type: m[3], Players: players}
	if b.RelVar == "" {
		b.RelVar = fmt.Sprintf("rel_%d", n)
		b.Statements[idx] = "$" + b.RelVar + " " + stmts[idx]
	}
	b.Statements = splitProperties(b.Statements)
	if b.Type == "" {
		// $r (a: $x, b: $y); $r isa uses;
		for _, st := range stmts {
			if tm := typeStmt.FindStringSubmatch(st); tm != nil && tm[1] == b.RelVar && tm[2] == "isa" {
				b.Type = tm[3]
			}
		}
	}
	return b, nil
}

func (r graqlRewriter) Pin(b BoundPattern, ids map[string]string) (string, error) {
	endpoints := b.playerVars()
	isEndpoint := make(map[string]bool, len(endpoints))
	pinned := make([]string, 0, len(b.Statements)+len(endpoints))
	for _, v := range endpoints {
		iid, ok := ids[v]
		if !ok {
			return "", fmt.Errorf("%w: no id for $%s", ErrMalformedQuery, v)
		}
		if !typeql.ValidIID(iid) {
			return "", fmt.Errorf("%w: id %q", typeql.ErrInvalid, iid)
		}
		isEndpoint[v] = true
		pinned = append(pinned, "$"+v+" id "+iid+";")
	}
	for _, st := range splitProperties(b.Statements) {
		if m := typeStmt.FindStringSubmatch(st); m != nil && isEndpoint[m[1]] {
			continue
		}
		pinned = append(pinned, st)
	}
	text := strings.Join(pinned, " ")
	if _, err := r.Parse(text); err != nil {
		return "", fmt.Errorf("pinned pattern cannot be reloaded: %w", err)
	}
	return text, nil
}

// Parse accepts only the statement shapes Pin and relation tokens emit:
// one relation statement plus id, isa and has constraints.
func (graqlRewriter) Parse(text string) (BoundPattern, error) {
	stmts, err := splitStatements(text)
	if err != nil {
		return BoundPattern{}, err
	}
	var b BoundPattern
	for _, st := range stmts {
		if m := relStmt.FindStringSubmatch(st); m != nil {
			if b.RelVar != "" || m[1] == "" || m[4] != "" {
				return BoundPattern{}, fmt.Errorf("%w: relation statement %q", ErrMalformedQuery, st)
			}
			players, err := parsePlayers(m[2])
			if err != nil {
				return BoundPattern{}, err
			}
			b.RelVar, b.Type, b.Players = m[1], m[3], players
			continue
		}
		if typeStmt.MatchString(st) || hasStmt.MatchString(st) {
			continue
		}
		return BoundPattern{}, fmt.Errorf("%w: statement %q", ErrMalformedQuery, st)
	}
	if b.RelVar == "" {
		return BoundPattern{}, ErrNoRelation
	}
	b.Statements = stmts
	return b, nil
}

// EncodeInferenceToken wraps a pinned pattern as an opaque relation id.
func EncodeInferenceToken(pattern string) string {
	return inferencePrefix + base64.RawURLEncoding.EncodeToString([]byte(pattern))
}

// IsInferenceToken reports whether id was produced by EncodeInferenceToken.
func IsInferenceToken(id string) bool { return strings.HasPrefix(id, inferencePrefix) }

// DecodeInferenceToken returns the pattern carried by token.
func DecodeInferenceToken(token string) (string, error) {
	if !IsInferenceToken(token) {
		return "", fmt.Errorf("%w: not an inference token", ErrMalformedQuery)
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, inferencePrefix))
	if err != nil {
		return "", fmt.Errorf("%w: inference token: %v", ErrMalformedQuery, err)
	}
	return string(raw), nil
}
