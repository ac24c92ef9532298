package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/buildops-contracts/internal/config"
	"github.com/nurpe/buildops-contracts/internal/excel"
	"github.com/nurpe/buildops-contracts/internal/model"
	"github.com/nurpe/buildops-contracts/internal/pdf"
	"github.com/nurpe/buildops-contracts/internal/service"
)

// memStore gives the handler tests a Store with the repository's transaction
// semantics: single writer per call, recompute after apply, rollback when
// apply fails.
type memStore struct {
	mu        sync.Mutex
	contracts map[uuid.UUID]*model.Contract
}

func newMemStore() *memStore {
	return &memStore{contracts: map[uuid.UUID]*model.Contract{}}
}

func (m *memStore) CreateContract(_ context.Context, contract *model.Contract) (*model.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := cloneAggregate(contract)
	m.contracts[contract.ID] = clone
	return cloneAggregate(clone), nil
}

func (m *memStore) GetContract(_ context.Context, id uuid.UUID) (*model.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneAggregate(stored), nil
}

func (m *memStore) ContractNumberExists(_ context.Context, contractNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.contracts {
		if c.ContractNumber == contractNumber {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UpdateAggregate(
	_ context.Context,
	id uuid.UUID,
	apply func(tx service.AggregateTx, contract *model.Contract) error,
) (*model.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.contracts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}

	working := cloneAggregate(stored)
	if err := apply(noopTx{}, working); err != nil {
		return nil, err
	}
	working.Recalculate()
	m.contracts[id] = cloneAggregate(working)

	result := cloneAggregate(working)
	result.SortLines()
	return result, nil
}

type noopTx struct{}

func (noopTx) InsertLine(context.Context, *model.ContractLine) error         { return nil }
func (noopTx) UpdateLine(context.Context, *model.ContractLine) error         { return nil }
func (noopTx) DeleteLine(context.Context, uuid.UUID) error                   { return nil }
func (noopTx) InsertVariation(context.Context, *model.Variation) error       { return nil }
func (noopTx) UpdateVariationStatus(context.Context, *model.Variation) error { return nil }

func cloneAggregate(c *model.Contract) *model.Contract {
	clone := *c
	clone.Lines = append([]model.ContractLine(nil), c.Lines...)
	clone.Variations = append([]model.Variation(nil), c.Variations...)
	return &clone
}

func testPrincipal(role model.Role) model.Principal {
	return model.Principal{UserID: uuid.New(), OrgID: uuid.New(), Role: role}
}

// stubAuth injects the principal directly; token parsing is covered by the
// auth package tests.
func stubAuth(principal model.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("principal", principal)
		c.Next()
	}
}

func newTestRouter(t *testing.T, principal model.Principal) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Contracts: config.ContractsConfig{VariationTypes: []string{"PCO", "CCD"}},
	}
	pdfGenerator, err := pdf.NewGenerator()
	if err != nil {
		t.Fatalf("pdf.NewGenerator: %v", err)
	}
	svc := service.NewContractService(newMemStore(), excel.NewGenerator(), pdfGenerator, cfg)
	handler := NewHandler(svc, zerolog.Nop())

	return NewRouter(handler, stubAuth(principal), "test")
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeContract(t *testing.T, recorder *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var payload map[string]interface{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, recorder.Body.String())
	}
	return payload
}

func TestContractFlowOverHTTP(t *testing.T) {
	router := newTestRouter(t, testPrincipal(model.RoleProjectManager))

	recorder := doJSON(t, router, http.MethodPost, "/contracts", map[string]string{
		"contract_number": "CN-2001",
		"project_id":      uuid.NewString(),
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create contract: status %d, body %s", recorder.Code, recorder.Body.String())
	}
	created := decodeContract(t, recorder)
	contractID := created["id"].(string)

	recorder = doJSON(t, router, http.MethodPost, "/contracts/"+contractID+"/lines", map[string]interface{}{
		"line_number":     1,
		"description":     "Substructure",
		"scheduled_value": "50000.00",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("add line 1: status %d, body %s", recorder.Code, recorder.Body.String())
	}

	recorder = doJSON(t, router, http.MethodPost, "/contracts/"+contractID+"/lines", map[string]interface{}{
		"line_number":     2,
		"description":     "Superstructure",
		"scheduled_value": "150000.00",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("add line 2: status %d", recorder.Code)
	}
	payload := decodeContract(t, recorder)
	if payload["original_amount"] != "200000.00" {
		t.Errorf("original_amount = %v, want 200000.00", payload["original_amount"])
	}
	if payload["revised_amount"] != "200000.00" {
		t.Errorf("revised_amount = %v, want 200000.00", payload["revised_amount"])
	}

	recorder = doJSON(t, router, http.MethodPost, "/contracts/"+contractID+"/variations", map[string]interface{}{
		"variation_number": 1,
		"title":            "Additional drainage",
		"type":             "PCO",
		"amount":           "10000.00",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("add variation: status %d, body %s", recorder.Code, recorder.Body.String())
	}
	payload = decodeContract(t, recorder)
	if payload["revised_amount"] != "200000.00" {
		t.Errorf("draft variation must not change revised_amount, got %v", payload["revised_amount"])
	}
	variations := payload["variations"].([]interface{})
	variationID := variations[0].(map[string]interface{})["id"].(string)

	recorder = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/contracts/%s/variations/%s/approve", contractID, variationID), nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("approve: status %d, body %s", recorder.Code, recorder.Body.String())
	}
	payload = decodeContract(t, recorder)
	if payload["revised_amount"] != "210000.00" {
		t.Errorf("revised_amount = %v, want 210000.00", payload["revised_amount"])
	}

	recorder = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/contracts/%s/variations/%s/approve", contractID, variationID), nil)
	if recorder.Code != http.StatusConflict {
		t.Errorf("second approve: status %d, want 409", recorder.Code)
	}

	recorder = doJSON(t, router, http.MethodGet, "/contracts/"+contractID, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("get contract: status %d", recorder.Code)
	}
	payload = decodeContract(t, recorder)
	if payload["revised_amount"] != "210000.00" {
		t.Errorf("after failed approve revised_amount = %v, want 210000.00", payload["revised_amount"])
	}
}

func TestValidationOverHTTP(t *testing.T) {
	router := newTestRouter(t, testPrincipal(model.RoleProjectManager))

	recorder := doJSON(t, router, http.MethodPost, "/contracts", map[string]string{
		"contract_number": "CN-3001",
		"project_id":      uuid.NewString(),
	})
	contractID := decodeContract(t, recorder)["id"].(string)

	recorder = doJSON(t, router, http.MethodPost, "/contracts/"+contractID+"/lines", map[string]interface{}{
		"line_number":     1,
		"scheduled_value": "-100",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("negative scheduled_value: status %d, want 400", recorder.Code)
	}

	recorder = doJSON(t, router, http.MethodPost, "/contracts/"+contractID+"/lines", map[string]interface{}{
		"line_number":     1,
		"scheduled_value": "10.255",
	})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("over-scale scheduled_value: status %d, want 400", recorder.Code)
	}

	recorder = doJSON(t, router, http.MethodGet, "/contracts/not-a-uuid", nil)
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("bad contract id: status %d, want 400", recorder.Code)
	}

	recorder = doJSON(t, router, http.MethodGet, "/contracts/"+uuid.NewString(), nil)
	if recorder.Code != http.StatusNotFound {
		t.Errorf("missing contract: status %d, want 404", recorder.Code)
	}
}

// Clients behind some proxies send the decision body with chunked encoding,
// where ContentLength is -1; the reason must still be parsed.
func TestRejectReasonWithChunkedBody(t *testing.T) {
	router := newTestRouter(t, testPrincipal(model.RoleProjectManager))

	recorder := doJSON(t, router, http.MethodPost, "/contracts", map[string]string{
		"contract_number": "CN-6001",
		"project_id":      uuid.NewString(),
	})
	contractID := decodeContract(t, recorder)["id"].(string)

	recorder = doJSON(t, router, http.MethodPost, "/contracts/"+contractID+"/variations", map[string]interface{}{
		"variation_number": 1,
		"title":            "Disputed scope",
		"type":             "PCO",
		"amount":           "10000.00",
	})
	payload := decodeContract(t, recorder)
	variationID := payload["variations"].([]interface{})[0].(map[string]interface{})["id"].(string)

	body, err := json.Marshal(map[string]string{"reason": "scope not agreed"})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	// io.MultiReader hides the length, so the request reports ContentLength -1.
	req := httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/contracts/%s/variations/%s/reject", contractID, variationID),
		io.MultiReader(bytes.NewReader(body)))
	req.Header.Set("Content-Type", "application/json")
	if req.ContentLength != -1 {
		t.Fatalf("test setup: ContentLength = %d, want -1", req.ContentLength)
	}
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("chunked reject: status %d, body %s", recorder.Code, recorder.Body.String())
	}
	payload = decodeContract(t, recorder)
	variation := payload["variations"].([]interface{})[0].(map[string]interface{})
	if variation["status"] != "REJECTED" {
		t.Errorf("status = %v, want REJECTED", variation["status"])
	}
	if variation["rejection_reason"] != "scope not agreed" {
		t.Errorf("rejection_reason = %v, want %q", variation["rejection_reason"], "scope not agreed")
	}
}

func TestViewerCannotMutateOverHTTP(t *testing.T) {
	router := newTestRouter(t, testPrincipal(model.RoleViewer))

	recorder := doJSON(t, router, http.MethodPost, "/contracts", map[string]string{
		"contract_number": "CN-4001",
		"project_id":      uuid.NewString(),
	})
	if recorder.Code != http.StatusForbidden {
		t.Errorf("viewer create: status %d, want 403", recorder.Code)
	}
}

func TestExportOverHTTP(t *testing.T) {
	router := newTestRouter(t, testPrincipal(model.RoleAdmin))

	recorder := doJSON(t, router, http.MethodPost, "/contracts", map[string]string{
		"contract_number": "CN-5001",
		"project_id":      uuid.NewString(),
	})
	contractID := decodeContract(t, recorder)["id"].(string)

	doJSON(t, router, http.MethodPost, "/contracts/"+contractID+"/lines", map[string]interface{}{
		"line_number":     1,
		"description":     "Groundworks",
		"scheduled_value": "80000.00",
	})

	recorder = doJSON(t, router, http.MethodPost, "/contracts/"+contractID+"/export", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("export xlsx: status %d, body %s", recorder.Code, recorder.Body.String())
	}
	if recorder.Body.Len() == 0 {
		t.Error("export xlsx: empty body")
	}
	if disposition := recorder.Header().Get("Content-Disposition"); disposition == "" {
		t.Error("export xlsx: missing Content-Disposition")
	}

	recorder = doJSON(t, router, http.MethodPost, "/contracts/"+contractID+"/export/pdf", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("export pdf: status %d", recorder.Code)
	}
	if recorder.Body.Len() == 0 {
		t.Error("export pdf: empty body")
	}
}
