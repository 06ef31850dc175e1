package upload_utils

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")

	assert.ErrorIs(t, &AuthError{Err: cause}, cause)
	assert.ErrorIs(t, &FinalizeError{Err: cause}, cause)
	assert.ErrorIs(t, &PartUploadError{PartNumber: 3, Err: context.Canceled}, context.Canceled)

	assert.Equal(t, "upload part 3 failed with status 503: boom", (&PartUploadError{PartNumber: 3, StatusCode: 503, Err: cause}).Error())
	assert.Equal(t, "invalid upload: a.avi has extension", newValidationError("%s has extension", "a.avi").Error())
}

func TestBatchError(t *testing.T) {
	var batch BatchError
	partErr := &PartUploadError{PartNumber: 1, StatusCode: 500, Err: errors.New("boom")}
	finalizeErr := &FinalizeError{Err: errors.New("bad order")}

	batch.add("task-b", partErr)
	batch.add("task-a", finalizeErr)

	assert.Len(t, batch.Errs, 2)
	assert.Equal(t, "2 uploads failed\n  task-b: "+partErr.Error()+"\n  task-a: "+finalizeErr.Error(), batch.Error())

	var gotPart *PartUploadError
	assert.ErrorAs(t, &batch, &gotPart)
	assert.ErrorIs(t, &batch, finalizeErr)
}
