package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/picklr-io/anfctl/internal/gateway"
	"github.com/picklr-io/anfctl/internal/resource"
)

// classify converts an SDK error into the gateway vocabulary. A 404 from a
// read or a patch means the resource is missing. A 404 from a create means a
// parent is missing, which is an ordinary failure.
func classify(op string, ref resource.Ref, err error) error {
	if err == nil {
		return nil
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == http.StatusNotFound && op != gateway.OpCreateOrUpdate {
			return errors.Join(gateway.NotFound(ref), err)
		}
		return &gateway.Error{
			Kind:       ref.Kind,
			Op:         op,
			StatusCode: respErr.StatusCode,
			Code:       respErr.ErrorCode,
			Transient:  gateway.IsTransientStatus(respErr.StatusCode),
			Err:        err,
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return &gateway.Error{
		Kind:      ref.Kind,
		Op:        op,
		Transient: gateway.IsTransient(err),
		Err:       err,
	}
}

// deleteError classifies a failed delete. Deleting a resource that is
// already gone succeeds.
func deleteError(ref resource.Ref, err error) error {
	err = classify(gateway.OpDelete, ref, err)
	if gateway.IsNotFound(err) {
		return nil
	}
	return err
}

// preflightError classifies a failed environment check. A 404 means the
// named resource group or subnet does not exist.
func preflightError(op, what string, err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w", what, errors.Join(gateway.ErrNotFound, err))
		}
		return fmt.Errorf("%s: %w", what, &gateway.Error{
			Op:         op,
			StatusCode: respErr.StatusCode,
			Code:       respErr.ErrorCode,
			Transient:  gateway.IsTransientStatus(respErr.StatusCode),
			Err:        err,
		})
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s: %w", what, &gateway.Error{Op: op, Transient: gateway.IsTransient(err), Err: err})
}
