package policy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrEthical07/authgate"
)

// Wildcard grants every permission to a role.
const Wildcard = "*"

type matrixDocument struct {
	Roles map[string][]string `yaml:"roles"`
}

// Matrix maps roles to granted permissions. It is immutable after
// construction.
type Matrix struct {
	grants map[string]map[string]struct{}
}

// NewMatrix builds a matrix from role → permissions.
func NewMatrix(roles map[string][]string) (*Matrix, error) {
	m := &Matrix{grants: make(map[string]map[string]struct{}, len(roles))}
	for role, perms := range roles {
		role = strings.TrimSpace(role)
		if role == "" {
			return nil, errors.New("policy matrix: empty role name")
		}
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			p = strings.TrimSpace(p)
			if p == "" {
				return nil, fmt.Errorf("policy matrix: empty permission for role %s", role)
			}
			set[p] = struct{}{}
		}
		m.grants[role] = set
	}
	return m, nil
}

// ParseMatrix reads a YAML document of the form:
//
//	roles:
//	  ADMIN: ["*"]
//	  USER: [reports.read]
func ParseMatrix(r io.Reader) (*Matrix, error) {
	var doc matrixDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("policy matrix: %w", err)
	}
	return NewMatrix(doc.Roles)
}

// LoadMatrixFile parses the YAML file at path.
func LoadMatrixFile(path string) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseMatrix(f)
}

// Name implements [authgate.PermissionPolicy].
func (m *Matrix) Name() string { return "matrix" }

// Allowed implements [authgate.PermissionPolicy].
func (m *Matrix) Allowed(_ context.Context, id authgate.Identity, permission string) (bool, error) {
	perms, ok := m.grants[id.Role]
	if !ok {
		return false, nil
	}
	if _, ok := perms[Wildcard]; ok {
		return true, nil
	}
	_, ok = perms[permission]
	return ok, nil
}
