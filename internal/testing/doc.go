// Package testing provides in-memory fakes and fixtures shared by unit tests.
//
// FakeIAM and FakeKube behave like the AWS IAM API and a Kubernetes API
// server closely enough for engine and component tests: they keep state,
// enforce the same conflicts and record every call.
//
// Usage:
//
//	kube := testutil.NewFakeKube()
//	iamAPI := testutil.NewFakeIAM()
//	env := &stack.Env{Kube: kube, IAM: iam.NewClient(iamAPI)}
package testing
