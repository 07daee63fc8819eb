package resolver

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"knx-resolve/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testManufacturer() *domain.Manufacturer {
	return &domain.Manufacturer{
		ID:                "mfr-gira",
		KNXManufacturerID: "M-0008",
		Name:              "Gira Giersiepen GmbH & Co. KG",
		ShortName:         sql.NullString{String: "Gira", Valid: true},
	}
}

func oracleServer(t *testing.T, status int, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req oracleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Model)
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "M-0008")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": answer}},
		})
	}))
}

func TestOracleInterpret_Success(t *testing.T) {
	srv := oracleServer(t, http.StatusOK,
		`{"productName":"Switching actuator 16fold","orderNumber":"1038 00","category":"switch actuator","confidence":0.9,"searchTerms":["1038 00"]}`)
	defer srv.Close()

	client := NewOracleClient(srv.URL, "test-key", "test-model", zap.NewNop())
	guess, err := client.Interpret(context.Background(), testManufacturer(), ParseKNXID("M-0008_P-1038.11"))

	require.NoError(t, err)
	require.NotNil(t, guess)
	assert.Equal(t, "Switching actuator 16fold", guess.ProductName)
	assert.Equal(t, "1038 00", guess.OrderNumber)
	assert.InDelta(t, 0.9, guess.Confidence, 1e-9)
}

func TestOracleInterpret_StripsMarkdownFences(t *testing.T) {
	srv := oracleServer(t, http.StatusOK,
		"```json\n{\"productName\":\"Actuator\",\"orderNumber\":\"2171 00\",\"confidence\":0.8}\n```")
	defer srv.Close()

	client := NewOracleClient(srv.URL, "test-key", "test-model", zap.NewNop())
	guess, err := client.Interpret(context.Background(), testManufacturer(), ParseKNXID("M-0008_P-2171"))

	require.NoError(t, err)
	require.NotNil(t, guess)
	assert.Equal(t, "Actuator", guess.ProductName)
}

func TestOracleInterpret_LowConfidenceRejected(t *testing.T) {
	srv := oracleServer(t, http.StatusOK,
		`{"productName":"Maybe something","orderNumber":"1234","confidence":0.3}`)
	defer srv.Close()

	client := NewOracleClient(srv.URL, "test-key", "test-model", zap.NewNop())
	guess, err := client.Interpret(context.Background(), testManufacturer(), ParseKNXID("M-0008_P-1234"))

	require.NoError(t, err)
	assert.Nil(t, guess)
}

func TestOracleInterpret_NullProductNameRejected(t *testing.T) {
	srv := oracleServer(t, http.StatusOK,
		`{"productName": null, "orderNumber": null, "confidence": 0}`)
	defer srv.Close()

	client := NewOracleClient(srv.URL, "test-key", "test-model", zap.NewNop())
	guess, err := client.Interpret(context.Background(), testManufacturer(), ParseKNXID("M-0008_P-1234"))

	require.NoError(t, err)
	assert.Nil(t, guess)
}

func TestOracleInterpret_Non2xxIsError(t *testing.T) {
	srv := oracleServer(t, http.StatusInternalServerError, `{}`)
	defer srv.Close()

	client := NewOracleClient(srv.URL, "test-key", "test-model", zap.NewNop())
	guess, err := client.Interpret(context.Background(), testManufacturer(), ParseKNXID("M-0008_P-1234"))

	assert.Error(t, err)
	assert.Nil(t, guess)
}

func TestOracleInterpret_MalformedJSONIsError(t *testing.T) {
	srv := oracleServer(t, http.StatusOK, `this is not json`)
	defer srv.Close()

	client := NewOracleClient(srv.URL, "test-key", "test-model", zap.NewNop())
	guess, err := client.Interpret(context.Background(), testManufacturer(), ParseKNXID("M-0008_P-1234"))

	assert.Error(t, err)
	assert.Nil(t, guess)
}
