package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/cardvault-api/internal/config"
	"github.com/cardvault-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient points the DynamoDB client at a local fake endpoint, the same
// override used for LocalStack.
func newTestClient(t *testing.T, handler http.Handler) *dynamodb.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.Config{
		AWSRegion:      "us-east-1",
		AWSEndpointURL: srv.URL,
		AWSAccessKeyID: "test",
		AWSSecretKey:   "test",
	})
}

func writeDynamoJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.0")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGetActivatedByPhone_FollowsPagination(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req struct {
			ExclusiveStartKey map[string]interface{} `json:"ExclusiveStartKey"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.ExclusiveStartKey == nil {
			// First page holds only a pending record with the same phone; the
			// is_verified filter leaves it empty but pagination continues.
			writeDynamoJSON(w, http.StatusOK,
				`{"Items":[],"Count":0,"ScannedCount":1,"LastEvaluatedKey":{"email":{"S":"pending@example.com"},"phone":{"S":"+15550001111"}}}`)
			return
		}
		writeDynamoJSON(w, http.StatusOK,
			`{"Items":[{"user_id":{"S":"u2"},"email":{"S":"bob@example.com"},"phone":{"S":"+15550001111"},"is_verified":{"BOOL":true}}],"Count":1,"ScannedCount":1}`)
	}))

	repo := NewUserRepo(client, "credit_users")
	u, err := repo.GetActivatedByPhone(context.Background(), "+15550001111")

	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", u.Email)
	assert.True(t, u.IsVerified)
	assert.Equal(t, 2, calls, "activated match on the second page must be reached")
}

func TestGetActivatedByPhone_NoActivatedMatch_NotFound(t *testing.T) {
	var calls int
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeDynamoJSON(w, http.StatusOK, `{"Items":[],"Count":0,"ScannedCount":1}`)
	}))

	repo := NewUserRepo(client, "credit_users")
	_, err := repo.GetActivatedByPhone(context.Background(), "+15550001111")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, 1, calls)
}

func TestUserUpdate_DoesNotMutateCallerMap(t *testing.T) {
	var body string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		body = string(buf)
		writeDynamoJSON(w, http.StatusOK, `{}`)
	}))

	repo := NewUserRepo(client, "credit_users")
	updates := map[string]interface{}{"is_verified": true}
	require.NoError(t, repo.Update(context.Background(), "alice@example.com", updates))

	// updated_at is stamped on the wire but the caller's map stays untouched.
	assert.Contains(t, body, "updated_at")
	assert.Len(t, updates, 1)
	_, mutated := updates["updated_at"]
	assert.False(t, mutated)
}
