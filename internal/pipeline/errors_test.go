package pipeline

import (
	"errors"
	"strings"
	"testing"
)

func TestIsCancelled(t *testing.T) {
	t.Parallel()

	if !IsCancelled(cancelledErr(StepURLCheck)) {
		t.Fatal("cancelledErr not recognized")
	}
	if IsCancelled(processorErr(StepURLCheck, errors.New("boom"))) {
		t.Fatal("ordinary processor error misread as cancellation")
	}
	if IsCancelled(nil) {
		t.Fatal("nil error misread as cancellation")
	}
}

func TestProcessorErrorNamesStep(t *testing.T) {
	t.Parallel()

	err := processorErr(StepContentHash, errors.New("boom"))
	if !strings.Contains(err.Error(), string(StepContentHash)) {
		t.Fatalf("error %q missing step name", err.Error())
	}

	var procErr *ProcessorError
	if !errors.As(err, &procErr) {
		t.Fatal("errors.As failed for ProcessorError")
	}
	if procErr.Step != StepContentHash {
		t.Fatalf("step = %s", procErr.Step)
	}
}

func TestStoreErrorUnwraps(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk gone")
	err := storeErr("insert pair", cause)
	if !errors.Is(err, cause) {
		t.Fatal("store error does not unwrap to its cause")
	}
}
