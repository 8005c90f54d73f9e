package iam

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

//go:embed iam_policy.json
var controllerPolicy []byte

const (
	policyVersion = "2012-10-17"

	// WebIdentityAudience is the audience EKS projects into service account tokens.
	WebIdentityAudience = "sts.amazonaws.com"
)

// PolicyDocument is an IAM policy or trust policy document.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single policy statement.
type Statement struct {
	Effect    string                       `json:"Effect"`
	Principal map[string]string            `json:"Principal,omitempty"`
	Action    any                          `json:"Action"`
	Resource  any                          `json:"Resource,omitempty"`
	Condition map[string]map[string]string `json:"Condition,omitempty"`
}

// ControllerPolicy returns the permissions the AWS Load Balancer Controller
// needs, as compact JSON.
func ControllerPolicy() string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, controllerPolicy); err != nil {
		// embedded document is validated by tests
		panic(fmt.Sprintf("invalid embedded controller policy: %v", err))
	}
	return buf.String()
}

// TrustPolicy returns the trust policy allowing the given service account to
// assume a role through the OIDC provider.
func TrustPolicy(providerARN, issuer, namespace, serviceAccount string) (string, error) {
	doc := PolicyDocument{
		Version: policyVersion,
		Statement: []Statement{{
			Effect:    "Allow",
			Principal: map[string]string{"Federated": providerARN},
			Action:    "sts:AssumeRoleWithWebIdentity",
			Condition: map[string]map[string]string{
				"StringEquals": {
					issuer + ":sub": fmt.Sprintf("system:serviceaccount:%s:%s", namespace, serviceAccount),
					issuer + ":aud": WebIdentityAudience,
				},
			},
		}},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode trust policy: %w", err)
	}
	return string(data), nil
}

// DocumentsEqual reports whether two policy documents are semantically equal.
// IAM returns documents URL-encoded and may reformat them, so both sides are
// decoded before comparison.
func DocumentsEqual(a, b string) bool {
	va, err := decodeDocument(a)
	if err != nil {
		return false
	}
	vb, err := decodeDocument(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

func decodeDocument(doc string) (any, error) {
	if !strings.HasPrefix(strings.TrimSpace(doc), "{") {
		unescaped, err := url.PathUnescape(doc)
		if err != nil {
			return nil, err
		}
		doc = unescaped
	}
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil, err
	}
	return v, nil
}
