// Package iam manages the AWS IAM resources that let the controller's
// service account assume a role through the cluster's OIDC provider
// (IAM Roles for Service Accounts).
//
// Names and ARNs are deterministic: role and policy ARNs are derived from the
// OIDC provider ARN's partition and account, so documents and manifests can
// be rendered without calling AWS.
package iam
