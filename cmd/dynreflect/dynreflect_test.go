package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

func strp(s string) *string { return &s }
func i32p(i int32) *int32   { return &i }

// writeDescriptorSet marshals a single-file FileDescriptorSet describing
//
//	message Note {
//	  string title = 1;
//	  int32 priority = 2;
//	}
//
// under package notes.v1, writing it to a temp file and returning its path.
func writeDescriptorSet(t *testing.T) string {
	t.Helper()
	fd := &descriptorpb.FileDescriptorProto{
		Name:    strp("note.proto"),
		Package: strp("notes.v1"),
		Syntax:  strp("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: strp("Note"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: strp("title"), Number: i32p(1), Type: descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
					{Name: strp("priority"), Number: i32p(2), Type: descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum(), Label: descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()},
				},
			},
		},
	}
	fds := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{fd}}
	b, err := proto.Marshal(fds)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "note.binpb")
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoadPoolAndResolveMessage(t *testing.T) {
	path := writeDescriptorSet(t)
	p, err := loadPool(path)
	require.NoError(t, err)
	md, err := resolveMessage(p, "notes.v1.Note")
	require.NoError(t, err)
	assert.Equal(t, 2, md.Fields().Len())

	_, err = resolveMessage(p, "notes.v1.Missing")
	assert.Error(t, err, "expected an error resolving an unregistered message")
}

func TestDescribeCommandPrintsFields(t *testing.T) {
	path := writeDescriptorSet(t)
	var buf bytes.Buffer
	cmd := newDescribeCmd(testLogger())
	cmd.SetOut(&buf)
	require.NoError(t, cmd.RunE(cmd, []string{path, "notes.v1.Note"}))

	out := buf.String()
	assert.Contains(t, out, "message notes.v1.Note {")
	assert.Contains(t, out, "title")
	assert.Contains(t, out, "priority")
}

func TestEncodeDecodeJSONRoundTrip(t *testing.T) {
	cfg = DefaultConfig()
	path := writeDescriptorSet(t)
	dir := t.TempDir()

	jsonIn := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(jsonIn, []byte(`{"title":"groceries","priority":2}`), 0o644))
	wireOut := filepath.Join(dir, "note.bin")

	encodeCmd := newEncodeCmd(testLogger())
	require.NoError(t, encodeCmd.Flags().Set("in", jsonIn))
	require.NoError(t, encodeCmd.Flags().Set("out", wireOut))
	require.NoError(t, encodeCmd.Flags().Set("format", "json"))
	require.NoError(t, encodeCmd.RunE(encodeCmd, []string{path, "notes.v1.Note"}))

	jsonOut := filepath.Join(dir, "out.json")
	decodeCmd := newDecodeCmd(testLogger())
	require.NoError(t, decodeCmd.Flags().Set("in", wireOut))
	require.NoError(t, decodeCmd.Flags().Set("out", jsonOut))
	require.NoError(t, decodeCmd.Flags().Set("format", "json"))
	require.NoError(t, decodeCmd.RunE(decodeCmd, []string{path, "notes.v1.Note"}))

	data, err := os.ReadFile(jsonOut)
	require.NoError(t, err)
	var obj map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &obj))
	assert.Equal(t, "groceries", obj["title"])
	assert.Equal(t, float64(2), obj["priority"])
}

func TestJSONCommandReverse(t *testing.T) {
	cfg = DefaultConfig()
	path := writeDescriptorSet(t)
	dir := t.TempDir()

	jsonIn := filepath.Join(dir, "in.json")
	require.NoError(t, os.WriteFile(jsonIn, []byte(`{"title":"milk","priority":1}`), 0o644))
	wireOut := filepath.Join(dir, "note.bin")

	cmd := newJSONCmd(testLogger())
	require.NoError(t, cmd.Flags().Set("in", jsonIn))
	require.NoError(t, cmd.Flags().Set("out", wireOut))
	require.NoError(t, cmd.Flags().Set("reverse", "true"))
	require.NoError(t, cmd.RunE(cmd, []string{path, "notes.v1.Note"}))

	wire, err := os.ReadFile(wireOut)
	require.NoError(t, err)
	assert.NotEmpty(t, wire)
}
