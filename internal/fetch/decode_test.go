package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func TestDecode_MultiDocument(t *testing.T) {
	t.Parallel()
	data := []byte(`---
apiVersion: v1
kind: Namespace
metadata:
  name: demo
---
# comment only
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: demo
spec:
  replicas: 2
`)
	objs, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "Namespace", objs[0].GetKind())
	assert.Equal(t, "web", objs[1].GetName())

	replicas, found, err := unstructured.NestedInt64(objs[1].Object, "spec", "replicas")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(2), replicas)
}

func TestDecode_FlattensLists(t *testing.T) {
	t.Parallel()
	data := []byte(`apiVersion: v1
kind: List
items:
- apiVersion: v1
  kind: ConfigMap
  metadata:
    name: a
- apiVersion: v1
  kind: ConfigMap
  metadata:
    name: b
`)
	objs, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "a", objs[0].GetName())
	assert.Equal(t, "b", objs[1].GetName())
}

func TestDecode_JSON(t *testing.T) {
	t.Parallel()
	objs, err := Decode([]byte(`{"apiVersion":"v1","kind":"Secret","metadata":{"name":"s"}}`))
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "Secret", objs[0].GetKind())
}

func TestDecode_Empty(t *testing.T) {
	t.Parallel()
	objs, err := Decode([]byte("---\n---\n"))
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestDecode_MissingKind(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte("metadata:\n  name: x\n"))
	assert.ErrorContains(t, err, "has no kind")
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()
	_, err := Decode([]byte("kind: [unterminated"))
	assert.Error(t, err)
}

func TestDecodeAll_PrefixesSource(t *testing.T) {
	t.Parallel()
	_, err := DecodeAll([]Document{
		{Source: "ok.yaml", Data: []byte(configMapYAML)},
		{Source: "bad.yaml", Data: []byte("metadata: {}\n")},
	})
	assert.ErrorContains(t, err, "bad.yaml")
}
