package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/konsul-app/konsul-backend/internal/domain"
	"github.com/konsul-app/konsul-backend/internal/services"
)

func TestIntents_CRUD(t *testing.T) {
	f := newAPI(t, WebhookOptions{})

	w := f.do(t, http.MethodPost, f.agentPath("/intents"), IntentRequest{
		Name:      "Saludo",
		Trigger:   "hola|buenas",
		ActionURL: "https://hooks.example.com/saludo",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	it := decode[domain.Intent](t, w)
	if it.ActionType != domain.ActionWebhook || !it.Enabled || it.TriggerCount != 0 {
		t.Fatalf("defaults not applied: %+v", it)
	}

	w = f.do(t, http.MethodGet, f.agentPath("/intents"), nil)
	if list := decode[ListIntentsResponse](t, w); w.Code != http.StatusOK || len(list.Intents) != 1 {
		t.Fatalf("list = %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPut, f.agentPath("/intents/"+it.ID), IntentRequest{
		Name:        "Saludo",
		Trigger:     "hola",
		ActionType:  "form",
		PayloadJSON: json.RawMessage(`{"fields":[{"name":"email","type":"email"}]}`),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d %s", w.Code, w.Body.String())
	}
	if upd := decode[domain.Intent](t, w); upd.ActionType != domain.ActionForm || upd.Trigger != "hola" {
		t.Fatalf("update not applied: %+v", upd)
	}

	w = f.do(t, http.MethodPatch, f.agentPath("/intents/"+it.ID+"/toggle"), nil)
	if w.Code != http.StatusOK || decode[domain.Intent](t, w).Enabled {
		t.Fatalf("toggle = %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, f.agentPath("/intents/"+it.ID), nil)
	if w.Code != http.StatusOK || decode[domain.Intent](t, w).Enabled {
		t.Fatalf("get = %d %s", w.Code, w.Body.String())
	}

	if w = f.do(t, http.MethodDelete, f.agentPath("/intents/"+it.ID), nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d %s", w.Code, w.Body.String())
	}
	expectError(t, f.do(t, http.MethodGet, f.agentPath("/intents/"+it.ID), nil), http.StatusNotFound, ErrCodeNotFound)
}

func TestIntents_ValidationAndConflicts(t *testing.T) {
	f := newAPI(t, WebhookOptions{})

	expectError(t, f.do(t, http.MethodPost, f.agentPath("/intents"), IntentRequest{Name: "x", Trigger: "(", ActionURL: "https://a.example"}),
		http.StatusBadRequest, ErrCodeInvalidTrigger)
	expectError(t, f.do(t, http.MethodPost, f.agentPath("/intents"), IntentRequest{Name: "x", Trigger: "hola", ActionType: "EMAIL"}),
		http.StatusBadRequest, ErrCodeBadRequest)
	expectError(t, f.do(t, http.MethodPost, f.agentPath("/intents"), IntentRequest{Name: "x", Trigger: "hola"}),
		http.StatusBadRequest, ErrCodeBadRequest)

	req := IntentRequest{Name: "Precio", Trigger: "precio", ActionURL: "https://a.example"}
	if w := f.do(t, http.MethodPost, f.agentPath("/intents"), req); w.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", w.Code, w.Body.String())
	}
	req.Name = "PRECIO"
	expectError(t, f.do(t, http.MethodPost, f.agentPath("/intents"), req), http.StatusConflict, ErrCodeConflict)

	// unknown agent
	expectError(t, f.do(t, http.MethodPost, "/api/v1/agents/"+otherWorkspace+"/intents", req), http.StatusNotFound, ErrCodeNotFound)
	expectError(t, f.do(t, http.MethodGet, f.agentPath("/intents/nope"), nil), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestIntents_DetectIsDryRun(t *testing.T) {
	f := newAPI(t, WebhookOptions{})

	w := f.do(t, http.MethodPost, f.agentPath("/intents"), IntentRequest{Name: "Saludo", Trigger: "hola|buenas", ActionURL: "https://a.example"})
	it := decode[domain.Intent](t, w)

	w = f.do(t, http.MethodPost, f.agentPath("/intents/detect"), DetectRequest{Message: "muy buenas"})
	got := decode[DetectResponse](t, w)
	if w.Code != http.StatusOK || !got.Matched || got.Intent.ID != it.ID {
		t.Fatalf("detect = %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, f.agentPath("/intents/detect"), DetectRequest{Message: "adios"})
	if got := decode[DetectResponse](t, w); got.Matched || got.Intent != nil {
		t.Fatalf("unexpected match: %s", w.Body.String())
	}
	expectError(t, f.do(t, http.MethodPost, f.agentPath("/intents/detect"), `{}`), http.StatusBadRequest, ErrCodeBadRequest)

	w = f.do(t, http.MethodGet, f.agentPath("/intents/"+it.ID), nil)
	if decode[domain.Intent](t, w).TriggerCount != 0 {
		t.Fatalf("detect must not count triggers: %s", w.Body.String())
	}
}

func TestIntents_Runs(t *testing.T) {
	f := newAPI(t, WebhookOptions{})

	w := f.do(t, http.MethodPost, f.agentPath("/intents"), IntentRequest{
		Name:        "Escalar",
		Trigger:     "humano",
		ActionType:  "INTERNAL",
		PayloadJSON: json.RawMessage(`{"action":"escalate_to_human"}`),
	})
	it := decode[domain.Intent](t, w)

	exec := services.NewIntentExecutor(f.db, nil, 0)
	if res := exec.Execute(context.Background(), &it, services.ExecContext{}); res.Success {
		t.Fatalf("escalation without a conversation should fail: %+v", res)
	}

	w = f.do(t, http.MethodGet, f.agentPath("/intents/"+it.ID+"/runs?limit=5"), nil)
	runs := decode[ListIntentRunsResponse](t, w)
	if w.Code != http.StatusOK || len(runs.Runs) != 1 || runs.Runs[0].Success {
		t.Fatalf("runs = %d %s", w.Code, w.Body.String())
	}
}
