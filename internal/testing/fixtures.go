package testing

// OIDC identifiers of a fictional EKS cluster in us-west-2.
const (
	AccountID    = "123456789012"
	OIDCIssuer   = "oidc.eks.us-west-2.amazonaws.com/id/EXAMPLED539D4633E53DE1B71EXAMPLE"
	OIDCProvider = "arn:aws:iam::" + AccountID + ":oidc-provider/" + OIDCIssuer
	ClusterName  = "example-cluster"
)

// CRDManifest is a minimal CustomResourceDefinition.
const CRDManifest = `apiVersion: apiextensions.k8s.io/v1
kind: CustomResourceDefinition
metadata:
  name: widgets.example.com
spec:
  group: example.com
  names:
    kind: Widget
    plural: widgets
    singular: widget
  scope: Namespaced
  versions:
  - name: v1
    served: true
    storage: true
    schema:
      openAPIV3Schema:
        type: object
        x-kubernetes-preserve-unknown-fields: true
`

// WorkloadManifest is a Namespace plus a Deployment in it.
const WorkloadManifest = `apiVersion: v1
kind: Namespace
metadata:
  name: demo
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: demo
spec:
  replicas: 1
  selector:
    matchLabels:
      app: web
  template:
    metadata:
      labels:
        app: web
    spec:
      containers:
      - name: web
        image: nginx:1.27
`
