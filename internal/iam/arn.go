package iam

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

var (
	accountIDPattern = regexp.MustCompile(`^\d{12}$`)
	eksIssuerPattern = regexp.MustCompile(`^oidc\.eks\.([a-z0-9-]+)\.amazonaws\.com(\.cn)?/`)
)

// OIDCProvider is a parsed IAM OIDC identity provider ARN.
type OIDCProvider struct {
	ARN       string
	Partition string
	AccountID string
	// Issuer is the provider URL without scheme, e.g.
	// oidc.eks.us-west-2.amazonaws.com/id/EXAMPLED539D4633E53DE1B71EXAMPLE.
	Issuer string
}

// IsOIDCProviderARN reports whether s looks like an IAM OIDC provider ARN.
func IsOIDCProviderARN(s string) bool {
	_, err := ParseOIDCProviderARN(s)
	return err == nil
}

// ParseOIDCProviderARN parses arn:<partition>:iam::<account>:oidc-provider/<issuer>.
func ParseOIDCProviderARN(s string) (*OIDCProvider, error) {
	parsed, err := arn.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid OIDC provider ARN %q: %w", s, err)
	}
	if parsed.Service != "iam" {
		return nil, fmt.Errorf("invalid OIDC provider ARN %q: service must be iam, got %q", s, parsed.Service)
	}
	if !accountIDPattern.MatchString(parsed.AccountID) {
		return nil, fmt.Errorf("invalid OIDC provider ARN %q: account ID must be 12 digits", s)
	}
	issuer, ok := strings.CutPrefix(parsed.Resource, "oidc-provider/")
	if !ok || issuer == "" {
		return nil, fmt.Errorf("invalid OIDC provider ARN %q: resource must be oidc-provider/<issuer>", s)
	}

	return &OIDCProvider{
		ARN:       s,
		Partition: parsed.Partition,
		AccountID: parsed.AccountID,
		Issuer:    issuer,
	}, nil
}

// NormalizeIssuer strips the URL scheme and trailing slash from an issuer.
func NormalizeIssuer(issuer string) string {
	issuer = strings.TrimPrefix(issuer, "https://")
	issuer = strings.TrimPrefix(issuer, "http://")
	return strings.TrimSuffix(issuer, "/")
}

// RegionFromIssuer extracts the region from an EKS issuer host such as
// oidc.eks.us-west-2.amazonaws.com/id/... It returns "" for other issuers.
func RegionFromIssuer(issuer string) string {
	m := eksIssuerPattern.FindStringSubmatch(NormalizeIssuer(issuer) + "/")
	if m == nil {
		return ""
	}
	return m[1]
}

// RoleARN returns the ARN of a role in the provider's account.
func (p *OIDCProvider) RoleARN(name string) string {
	return arn.ARN{Partition: p.Partition, Service: "iam", AccountID: p.AccountID, Resource: "role/" + name}.String()
}

// PolicyARN returns the ARN of a customer managed policy in the provider's account.
func (p *OIDCProvider) PolicyARN(name string) string {
	return arn.ARN{Partition: p.Partition, Service: "iam", AccountID: p.AccountID, Resource: "policy/" + name}.String()
}
