package metrics

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func newTestRecorder(buf *bytes.Buffer) *Recorder {
	rec := New("TestNamespace")
	rec.out = buf
	return rec
}

func TestNew_AutoDimension(t *testing.T) {
	initOnce.Do(func() {})
	functionName = "audit-lambda"
	defer func() { functionName = "" }()

	r := New(Namespace)
	if r.namespace != Namespace {
		t.Errorf("expected namespace %s, got %s", Namespace, r.namespace)
	}
	if r.dimensions["FunctionName"] != "audit-lambda" {
		t.Errorf("expected FunctionName dimension, got %q", r.dimensions["FunctionName"])
	}
	if !InLambda() {
		t.Error("expected InLambda with a function name set")
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	initOnce.Do(func() {})
	functionName = ""

	var buf bytes.Buffer
	newTestRecorder(&buf).
		Dimension("Operation", "analyze").
		Duration("DescribeLatencyMs", 1500*time.Millisecond).
		Count("Analyses").
		Property("outcome", "success").
		Flush()

	var doc map[string]any
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("failed to parse EMF output: %v\n%s", err, buf.String())
	}
	awsMap, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws directive")
	}
	if _, ok := awsMap["Timestamp"]; !ok {
		t.Error("missing Timestamp")
	}
	cwArr, ok := awsMap["CloudWatchMetrics"].([]any)
	if !ok || len(cwArr) != 1 {
		t.Fatal("expected one CloudWatchMetrics entry")
	}
	cw := cwArr[0].(map[string]any)
	if cw["Namespace"] != "TestNamespace" {
		t.Errorf("unexpected namespace %v", cw["Namespace"])
	}
	if doc["Operation"] != "analyze" {
		t.Errorf("expected Operation=analyze, got %v", doc["Operation"])
	}
	if doc["DescribeLatencyMs"] != float64(1500) {
		t.Errorf("expected DescribeLatencyMs=1500, got %v", doc["DescribeLatencyMs"])
	}
	if doc["Analyses"] != float64(1) {
		t.Errorf("expected Analyses=1, got %v", doc["Analyses"])
	}
	if doc["outcome"] != "success" {
		t.Errorf("expected outcome property, got %v", doc["outcome"])
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) || bytes.Count(buf.Bytes(), []byte("\n")) != 1 {
		t.Error("expected exactly one line of output")
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	newTestRecorder(&buf).Property("id", "x").Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output without metrics, got %s", buf.String())
	}
}

func TestRecorder_Count(t *testing.T) {
	rec := New("Test").Count("Errors")
	if v, ok := rec.values["Errors"]; !ok || v != float64(1) {
		t.Errorf("expected Errors=1, got %v", v)
	}
	if m := rec.metrics["Errors"]; m.Unit != UnitCount {
		t.Errorf("expected unit Count, got %v", m.Unit)
	}
}
