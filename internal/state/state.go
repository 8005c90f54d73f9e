package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"time"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// CurrentVersion is the schema version written by Save.
const CurrentVersion = 1

var stackNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,99}$`)

// ValidateStackName checks a stack name is usable as a file or object key.
func ValidateStackName(name string) error {
	if !stackNamePattern.MatchString(name) {
		return fmt.Errorf("invalid stack name %q: must start with a letter or digit and contain only letters, digits, '.', '_' or '-'", name)
	}
	return nil
}

// State is everything recorded for one stack.
type State struct {
	Version   int       `json:"version"`
	Stack     string    `json:"stack"`
	UpdatedAt time.Time `json:"updatedAt"`
	Resources []Record  `json:"resources"`
}

// New returns an empty state for a stack.
func New(stack string) *State {
	return &State{Version: CurrentVersion, Stack: stack}
}

// Record describes one applied resource.
type Record struct {
	URN          string            `json:"urn"`
	Type         string            `json:"type"`
	Dependencies []string          `json:"dependencies,omitempty"`
	Objects      []ObjectRef       `json:"objects,omitempty"`
	Cloud        []CloudRef        `json:"cloud,omitempty"`
	Fingerprints map[string]string `json:"fingerprints,omitempty"`
	Outputs      map[string]string `json:"outputs,omitempty"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// ObjectRef identifies a Kubernetes object.
type ObjectRef struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Namespace  string `json:"namespace,omitempty"`
	Name       string `json:"name"`
}

// GroupVersionKind parses the reference's apiVersion and kind.
func (r ObjectRef) GroupVersionKind() schema.GroupVersionKind {
	return schema.FromAPIVersionAndKind(r.APIVersion, r.Kind)
}

// Key identifies the object independent of its API version, so a version
// bump is an update rather than a replacement.
func (r ObjectRef) Key() string {
	group := r.GroupVersionKind().Group
	if r.Namespace == "" {
		return fmt.Sprintf("%s.%s/%s", r.Kind, group, r.Name)
	}
	return fmt.Sprintf("%s.%s/%s/%s", r.Kind, group, r.Namespace, r.Name)
}

func (r ObjectRef) String() string {
	if r.Namespace == "" {
		return r.Kind + "/" + r.Name
	}
	return r.Kind + "/" + r.Namespace + "/" + r.Name
}

// CloudRef identifies an AWS resource created by the engine.
type CloudRef struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	ARN  string `json:"arn,omitempty"`
	// Role and PolicyARN are set for role policy attachments.
	Role      string `json:"role,omitempty"`
	PolicyARN string `json:"policyArn,omitempty"`
}

// Key identifies the cloud resource within a record.
func (r CloudRef) Key() string {
	if r.Role != "" {
		return fmt.Sprintf("%s/%s/%s", r.Kind, r.Role, r.PolicyARN)
	}
	return r.Kind + "/" + r.Name
}

// Find returns the record for a URN, or nil.
func (s *State) Find(urn string) *Record {
	for i := range s.Resources {
		if s.Resources[i].URN == urn {
			return &s.Resources[i]
		}
	}
	return nil
}

// Upsert inserts or replaces the record with the same URN.
func (s *State) Upsert(rec Record) {
	if existing := s.Find(rec.URN); existing != nil {
		*existing = rec
		return
	}
	s.Resources = append(s.Resources, rec)
}

// Remove deletes the record for a URN.
func (s *State) Remove(urn string) {
	s.Resources = slices.DeleteFunc(s.Resources, func(r Record) bool {
		return r.URN == urn
	})
}

// Fingerprint returns the hex sha256 of the canonical JSON encoding of v.
// encoding/json sorts map keys, which makes the encoding canonical for the
// unstructured maps and plain structs this is used with.
func Fingerprint(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode for fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
