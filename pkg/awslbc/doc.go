// Package awslbc declares the AWS Load Balancer Controller as a stack
// resource.
//
// A Deployment wires IAM roles for service accounts (an IAM role trusted by
// the cluster's OIDC provider, the controller policy and their attachment)
// to the controller's Kubernetes objects: service account, RBAC, webhook
// certificates, Deployment, IngressClass and admission webhooks. Objects are
// built from typed API structs by default, or rendered from the upstream
// eks-charts chart when InstallMethod is InstallMethodHelm.
//
//	lbc, err := awslbc.NewDeployment(s, "lbc", &awslbc.DeploymentArgs{
//		OIDCIssuer:   "oidc.eks.us-west-2.amazonaws.com/id/EXAMPLE",
//		OIDCProvider: "arn:aws:iam::123456789012:oidc-provider/oidc.eks.us-west-2.amazonaws.com/id/EXAMPLE",
//		ClusterName:  "demo",
//		InstallCRDs:  true,
//	})
package awslbc
