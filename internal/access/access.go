// Package access evalua listas de permisos contra el estado de una sesion.
//
// Cada nombre se convierte en un Matcher con una variante fija; la lista se
// evalua en orden y gana el primer matcher que concede.
package access

import (
	"strings"

	"appsession/internal/domain"
)

// Nombres reservados. Cualquier otro nombre es un permiso literal.
const (
	Any   = "*"
	Guest = "guest"
	User  = "user"
	Root  = "root"
)

// Kind es la variante de un Matcher.
type Kind int

const (
	KindAny Kind = iota
	KindGuest
	KindUser
	KindRoot
	KindLiteral
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindGuest:
		return "guest"
	case KindUser:
		return "user"
	case KindRoot:
		return "root"
	default:
		return "literal"
	}
}

// Subject es la vista minima de la sesion que necesita la evaluacion.
type Subject struct {
	Authenticated bool
	Root          bool
	Permissions   domain.Permissions
}

// RootIdentity identifica al usuario root. Un campo vacio no se compara.
type RootIdentity struct {
	UserID   string
	Username string
}

// Matches reporta si el usuario es root: su id coincide con UserID o su
// nombre coincide con Username. Sin usuario nunca es root.
func (r RootIdentity) Matches(userID, username string) bool {
	if userID == "" {
		return false
	}
	return (r.UserID != "" && userID == r.UserID) ||
		(r.Username != "" && username == r.Username)
}

// Matcher es un nombre de permiso ya clasificado.
type Matcher struct {
	Kind Kind
	Name string
}

// Parse clasifica un nombre. La precedencia es la de la tabla de abajo.
func Parse(name string) Matcher {
	switch name {
	case Any:
		return Matcher{Kind: KindAny, Name: name}
	case Guest:
		return Matcher{Kind: KindGuest, Name: name}
	case User:
		return Matcher{Kind: KindUser, Name: name}
	case Root:
		return Matcher{Kind: KindRoot, Name: name}
	default:
		return Matcher{Kind: KindLiteral, Name: name}
	}
}

// Grants reporta si el matcher concede acceso al sujeto.
func (m Matcher) Grants(s Subject) bool {
	switch m.Kind {
	case KindAny:
		return true
	case KindGuest:
		return !s.Authenticated
	case KindUser:
		return s.Authenticated
	case KindRoot:
		return s.Root
	default:
		return s.Permissions.Has(m.Name)
	}
}

// Compile convierte una lista de nombres en matchers, en el mismo orden.
func Compile(names []string) []Matcher {
	out := make([]Matcher, 0, len(names))
	for _, n := range names {
		out = append(out, Parse(n))
	}
	return out
}

// Check devuelve true con el primer nombre que concede acceso.
// Una lista vacia nunca concede.
func Check(s Subject, names ...string) bool {
	for _, m := range Compile(names) {
		if m.Grants(s) {
			return true
		}
	}
	return false
}

// ParseList separa una lista por comas, recorta espacios y descarta vacios.
// Devuelve nil si no queda ningun nombre.
func ParseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
