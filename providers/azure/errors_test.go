package azure

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picklr-io/anfctl/internal/gateway"
)

func TestPreflightError_NotFound(t *testing.T) {
	err := preflightError(gateway.OpResolveSubnet, "subnet anf in virtual network vnet",
		&azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "NotFound"})
	assert.True(t, gateway.IsNotFound(err))
}

func TestPreflightError_RemoteFailure(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := preflightError(gateway.OpCheckResourceGroup, `resource group "rg"`,
				&azcore.ResponseError{StatusCode: tt.status, ErrorCode: "Failed"})
			assert.False(t, gateway.IsNotFound(err))

			var gwErr *gateway.Error
			require.True(t, errors.As(err, &gwErr))
			assert.Equal(t, gateway.OpCheckResourceGroup, gwErr.Op)
			assert.Equal(t, tt.status, gwErr.StatusCode)
			assert.Equal(t, tt.transient, gwErr.Transient)
			assert.Equal(t, tt.transient, gateway.IsTransient(err))
		})
	}
}

func TestPreflightError_Cancelled(t *testing.T) {
	err := preflightError(gateway.OpCheckResourceGroup, `resource group "rg"`, context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	var gwErr *gateway.Error
	assert.False(t, errors.As(err, &gwErr))
}
