package typeql

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	labelPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)
	iidPattern   = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)
)

// ValidLabel reports whether s can be used as a type, role or attribute label.
func ValidLabel(s string) bool { return labelPattern.MatchString(s) }

// ValidIID reports whether s can be used as a concept identifier.
func ValidIID(s string) bool { return iidPattern.MatchString(s) }

func checkLabel(kind, s string) error {
	if !ValidLabel(s) {
		return fmt.Errorf("%w: %s %q", ErrInvalid, kind, s)
	}
	return nil
}

// Var is a query variable. Var("x") renders as $x.
type Var string

func (v Var) String() string { return "$" + string(v) }

func (v Var) render() (string, error) {
	if err := checkLabel("variable", string(v)); err != nil {
		return "", err
	}
	return v.String(), nil
}

// Statement is one conjunct of a match, insert or delete pattern.
type Statement interface {
	render() (string, error)
}

// Pattern is an ordered conjunction of statements.
type Pattern []Statement

// Render renders the pattern as "stmt; stmt;" without a trailing space.
func (p Pattern) Render() (string, error) {
	parts := make([]string, 0, len(p))
	for _, st := range p {
		s, err := st.render()
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " "), nil
}

// RolePlayer binds a variable to a role in a relation tuple. An empty role
// renders the player without a role label.
type RolePlayer struct {
	Role   string
	Player Var
}

// Role is shorthand for RolePlayer{Role: role, Player: player}.
func Role(role string, player Var) RolePlayer {
	return RolePlayer{Role: role, Player: player}
}

// ThingStatement describes an entity, relation or attribute instance:
// $x (role: $a) id V1, isa type, has attr "v", has attr $a via $r;
type ThingStatement struct {
	v       Var
	players []RolePlayer
	props   []func() (string, error)
}

// Rel starts an anonymous relation statement: (role: $a, role: $b) isa type;
func Rel(players ...RolePlayer) *ThingStatement {
	return &ThingStatement{players: players}
}

// Isa starts a statement constraining v to type label.
func (v Var) Isa(label string) *ThingStatement {
	return (&ThingStatement{v: v}).Isa(label)
}

// ID starts a statement pinning v to a concept identifier.
func (v Var) ID(iid string) *ThingStatement {
	return (&ThingStatement{v: v}).ID(iid)
}

// Has starts a statement requiring v to own attribute label with value.
func (v Var) Has(label string, value Value) *ThingStatement {
	return (&ThingStatement{v: v}).Has(label, value)
}

// HasVar starts a statement binding v's attribute label to variable a.
func (v Var) HasVar(label string, a Var) *ThingStatement {
	return (&ThingStatement{v: v}).HasVar(label, a)
}

// HasVia starts a statement binding v's attribute label to a and the
// ownership edge itself to via.
func (v Var) HasVia(label string, a, via Var) *ThingStatement {
	return (&ThingStatement{v: v}).HasVia(label, a, via)
}

// Rel starts a named relation statement: $v (role: $a, role: $b) ...;
func (v Var) Rel(players ...RolePlayer) *ThingStatement {
	return &ThingStatement{v: v, players: players}
}

// Isa adds an isa constraint.
func (s *ThingStatement) Isa(label string) *ThingStatement {
	s.props = append(s.props, func() (string, error) {
		if err := checkLabel("type", label); err != nil {
			return "", err
		}
		return "isa " + label, nil
	})
	return s
}

// ID adds an identifier constraint.
func (s *ThingStatement) ID(iid string) *ThingStatement {
	s.props = append(s.props, func() (string, error) {
		if !ValidIID(iid) {
			return "", fmt.Errorf("%w: identifier %q", ErrInvalid, iid)
		}
		return "id " + iid, nil
	})
	return s
}

// Has adds an attribute ownership with a literal value.
func (s *ThingStatement) Has(label string, value Value) *ThingStatement {
	s.props = append(s.props, func() (string, error) {
		if err := checkLabel("attribute", label); err != nil {
			return "", err
		}
		if value == nil {
			return "", fmt.Errorf("%w: nil value for %q", ErrInvalid, label)
		}
		lit, err := value.literal()
		if err != nil {
			return "", err
		}
		return "has " + label + " " + lit, nil
	})
	return s
}

// HasVar adds an attribute ownership bound to a variable.
func (s *ThingStatement) HasVar(label string, a Var) *ThingStatement {
	s.props = append(s.props, func() (string, error) {
		if err := checkLabel("attribute", label); err != nil {
			return "", err
		}
		av, err := a.render()
		if err != nil {
			return "", err
		}
		return "has " + label + " " + av, nil
	})
	return s
}

// HasVia adds an attribute ownership whose edge is bound to via.
func (s *ThingStatement) HasVia(label string, a, via Var) *ThingStatement {
	s.props = append(s.props, func() (string, error) {
		if err := checkLabel("attribute", label); err != nil {
			return "", err
		}
		av, err := a.render()
		if err != nil {
			return "", err
		}
		vv, err := via.render()
		if err != nil {
			return "", err
		}
		return "has " + label + " " + av + " via " + vv, nil
	})
	return s
}

func (s *ThingStatement) render() (string, error) {
	var head []string
	if s.v != "" {
		v, err := s.v.render()
		if err != nil {
			return "", err
		}
		head = append(head, v)
	}
	if len(s.players) > 0 {
		tuple := make([]string, 0, len(s.players))
		for _, rp := range s.players {
			pv, err := rp.Player.render()
			if err != nil {
				return "", err
			}
			if rp.Role == "" {
				tuple = append(tuple, pv)
				continue
			}
			if err := checkLabel("role", rp.Role); err != nil {
				return "", err
			}
			tuple = append(tuple, rp.Role+": "+pv)
		}
		head = append(head, "("+strings.Join(tuple, ", ")+")")
	}
	if len(head) == 0 {
		return "", fmt.Errorf("%w: statement without variable or role players", ErrInvalid)
	}

	props := make([]string, 0, len(s.props))
	for _, p := range s.props {
		text, err := p()
		if err != nil {
			return "", err
		}
		props = append(props, text)
	}
	if len(props) == 0 && len(s.players) == 0 {
		return "", fmt.Errorf("%w: statement %s has no constraints", ErrInvalid, s.v)
	}

	out := strings.Join(head, " ")
	if len(props) > 0 {
		out += " " + strings.Join(props, ", ")
	}
	return out + ";", nil
}

// Comparator is a value predicate operator.
type Comparator string

const (
	Eq       Comparator = "=="
	Neq      Comparator = "!="
	Gt       Comparator = ">"
	Gte      Comparator = ">="
	Lt       Comparator = "<"
	Lte      Comparator = "<="
	Contains Comparator = "contains"
)

type predicate struct {
	v     Var
	op    Comparator
	value Value
}

// Compare constrains the value bound to v: $v > 2020-01-01T00:00:00.000;
func (v Var) Compare(op Comparator, value Value) Statement {
	return predicate{v: v, op: op, value: value}
}

func (p predicate) render() (string, error) {
	v, err := p.v.render()
	if err != nil {
		return "", err
	}
	switch p.op {
	case Eq, Neq, Gt, Gte, Lt, Lte, Contains:
	default:
		return "", fmt.Errorf("%w: comparator %q", ErrInvalid, p.op)
	}
	if p.value == nil {
		return "", fmt.Errorf("%w: nil value for %s", ErrInvalid, v)
	}
	lit, err := p.value.literal()
	if err != nil {
		return "", err
	}
	return v + " " + string(p.op) + " " + lit + ";", nil
}

type typeStatement struct {
	v     Var
	kw    string
	label string
}

// Type binds v to the schema type called label: $v type label;
func (v Var) Type(label string) Statement {
	return typeStatement{v: v, kw: "type", label: label}
}

// Sub binds v to any subtype of label: $v sub label;
func (v Var) Sub(label string) Statement {
	return typeStatement{v: v, kw: "sub", label: label}
}

func (t typeStatement) render() (string, error) {
	v, err := t.v.render()
	if err != nil {
		return "", err
	}
	if err := checkLabel("type", t.label); err != nil {
		return "", err
	}
	return v + " " + t.kw + " " + t.label + ";", nil
}

type disjunction []Pattern

// Or renders { a; } or { b; }; and requires at least one branch to match.
// A single branch is rendered without braces.
func Or(branches ...Pattern) Statement {
	return disjunction(branches)
}

func (d disjunction) render() (string, error) {
	if len(d) == 0 {
		return "", fmt.Errorf("%w: empty disjunction", ErrInvalid)
	}
	if len(d) == 1 {
		return d[0].Render()
	}
	parts := make([]string, 0, len(d))
	for _, branch := range d {
		body, err := branch.Render()
		if err != nil {
			return "", err
		}
		if body == "" {
			return "", fmt.Errorf("%w: empty disjunction branch", ErrInvalid)
		}
		parts = append(parts, "{ "+body+" }")
	}
	return strings.Join(parts, " or ") + ";", nil
}

type raw string

// Raw embeds pre-rendered pattern text. Only use it for text this process
// produced or has re-validated; it bypasses all escaping.
func Raw(text string) Statement {
	return raw(text)
}

func (r raw) render() (string, error) {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return "", fmt.Errorf("%w: empty raw pattern", ErrInvalid)
	}
	if !strings.HasSuffix(s, ";") {
		s += ";"
	}
	return s, nil
}
