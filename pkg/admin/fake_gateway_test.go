package admin_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/papercomputeco/portal/pkg/gateway"
)

// fakeGateway implements the admin endpoints over in-memory state.
type fakeGateway struct {
	mu sync.Mutex

	adminKey      string
	bootstrapFail bool
	listFail      int
	keys          []gateway.APIKeyEntry
	seq           int

	bootstrapCalls int
	rotateCalls    int
	listCalls      int
	lastBearer     string
}

func (f *fakeGateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeGateway) writeErr(w http.ResponseWriter, status int, code string) {
	f.writeJSON(w, status, gateway.ErrorResponse{Error: &gateway.ErrorDetail{Code: code, Message: code}})
}

// addKey registers a server-side key with no local plaintext.
func (f *fakeGateway) addKey(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	n := name
	f.keys = append(f.keys, gateway.APIKeyEntry{
		ID:     fmt.Sprintf("key-%d", f.seq),
		Name:   &n,
		Tenant: name,
		Active: true,
	})
}

func (f *fakeGateway) setAdminKey(k string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.adminKey = k
}

func (f *fakeGateway) counts() (bootstrap, list int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bootstrapCalls, f.listCalls
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	f.lastBearer = bearer
	authorized := f.adminKey != "" && bearer == f.adminKey

	switch {
	case r.Method == http.MethodPost && r.URL.Path == gateway.PathAdminBootstrap:
		f.bootstrapCalls++
		if f.bootstrapFail {
			f.writeErr(w, http.StatusConflict, "admin_exists")
			return
		}
		f.seq++
		f.adminKey = fmt.Sprintf("adm-%d", f.seq)
		f.writeJSON(w, http.StatusOK, gateway.IssuedKeyResponse{APIKey: f.adminKey})

	case r.Method == http.MethodPost && r.URL.Path == gateway.PathAdminRotate:
		f.rotateCalls++
		if !authorized {
			f.writeErr(w, http.StatusUnauthorized, "invalid_admin_key")
			return
		}
		f.seq++
		f.adminKey = fmt.Sprintf("adm-%d", f.seq)
		f.writeJSON(w, http.StatusOK, gateway.IssuedKeyResponse{APIKey: f.adminKey})

	case r.Method == http.MethodGet && r.URL.Path == gateway.PathAdminStatus:
		f.writeJSON(w, http.StatusOK, gateway.AdminStatus{AdminInitialized: f.adminKey != ""})

	case r.Method == http.MethodGet && r.URL.Path == gateway.PathAdminKeys:
		f.listCalls++
		if !authorized {
			f.writeErr(w, http.StatusUnauthorized, "invalid_admin_key")
			return
		}
		if f.listFail > 0 {
			f.listFail--
			f.writeErr(w, http.StatusInternalServerError, "internal")
			return
		}
		f.writeJSON(w, http.StatusOK, gateway.KeysResponse{Keys: append([]gateway.APIKeyEntry{}, f.keys...)})

	case r.Method == http.MethodPost && r.URL.Path == gateway.PathAdminKeys:
		if !authorized {
			f.writeErr(w, http.StatusForbidden, "invalid_admin_key")
			return
		}
		var body gateway.CreateKeyRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.seq++
		name := body.Name
		f.keys = append(f.keys, gateway.APIKeyEntry{
			ID:     fmt.Sprintf("key-%d", f.seq),
			Name:   &name,
			Tenant: name,
			Active: true,
		})
		f.writeJSON(w, http.StatusOK, gateway.CreateKeyResponse{APIKey: fmt.Sprintf("sk-%d", f.seq), Tenant: name})

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, gateway.PathAdminKeys+"/"):
		if !authorized {
			f.writeErr(w, http.StatusUnauthorized, "invalid_admin_key")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, gateway.PathAdminKeys+"/")
		for i := range f.keys {
			if f.keys[i].ID == id {
				f.keys[i].Active = false
				f.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
				return
			}
		}
		f.writeErr(w, http.StatusNotFound, "not_found")

	default:
		f.writeErr(w, http.StatusNotFound, "not_found")
	}
}
