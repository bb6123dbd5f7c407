package cas

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/apereo/cas-sub043/auth"
	"github.com/apereo/cas-sub043/common"
	"github.com/apereo/cas-sub043/ticket"
)

// RESTful HTTP API over the central authentication service. This is the
// engine's own driver surface; protocol front ends (CAS XML, SAML, ...)
// live outside this server and consume the same operations.
type API struct {
	service *Service
}

// NewAPI returns the configured ticket API
func NewAPI(service *Service) *API {
	return &API{
		service,
	}
}

type credentialsBody struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

func (b credentialsBody) credential() auth.Credential {
	if b.Username == "" && b.Password == "" {
		return nil
	}
	return auth.UsernamePassword{Username: b.Username, Password: b.Password, RememberMe: b.RememberMe}
}

// Handlers ///////////////////////////////////////////////////////////////////////

// Create is a handler for creating a ticket granting ticket
func (api *API) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		common.ErrorResponse(http.StatusBadRequest, err.Error(), w)
		return
	}

	var creds credentialsBody
	if err := json.Unmarshal(body, &creds); err != nil {
		common.ErrorResponse(http.StatusBadRequest, "Error processing input: "+err.Error(), w)
		return
	}

	id, err := api.service.CreateTicketGrantingTicket(r.Context(), creds.credential())
	if err != nil {
		common.ErrorResponse(common.HTTPStatus(err), err.Error(), w)
		return
	}

	b, _ := json.Marshal(map[string]string{"ticketGrantingTicket": id})
	w.Header().Set("Location", common.TicketAPILoc+"/"+id)
	w.Header().Set("Content-Type", common.DefaultMIMEType)
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// Grant is a handler for granting a service ticket under a TGT or PGT
// Expected parameters: id
func (api *API) Grant(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	id := params["id"]

	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		common.ErrorResponse(http.StatusBadRequest, err.Error(), w)
		return
	}

	var req struct {
		Service string `json:"service"`
		credentialsBody
	}
	if err := json.Unmarshal(body, &req); err != nil {
		common.ErrorResponse(http.StatusBadRequest, "Error processing input: "+err.Error(), w)
		return
	}

	stID, err := api.service.GrantServiceTicket(r.Context(), id, req.Service, req.credential())
	if err != nil {
		common.ErrorResponse(common.HTTPStatus(err), err.Error(), w)
		return
	}

	b, _ := json.Marshal(map[string]string{"serviceTicket": stID})
	w.Header().Set("Content-Type", common.DefaultMIMEType)
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// Validate is a handler for validating (and consuming) a service ticket
func (api *API) Validate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		common.ErrorResponse(http.StatusBadRequest, err.Error(), w)
		return
	}

	var req struct {
		ServiceTicket string `json:"serviceTicket"`
		Service       string `json:"service"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		common.ErrorResponse(http.StatusBadRequest, "Error processing input: "+err.Error(), w)
		return
	}

	a, err := api.service.ValidateServiceTicket(r.Context(), req.ServiceTicket, req.Service)
	if err != nil {
		common.ErrorResponse(common.HTTPStatus(err), err.Error(), w)
		return
	}

	b, _ := json.Marshal(&a)
	w.Header().Set("Content-Type", common.DefaultMIMEType)
	w.Write(b)
}

// Delegate is a handler for minting a proxy granting ticket
func (api *API) Delegate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		common.ErrorResponse(http.StatusBadRequest, err.Error(), w)
		return
	}

	var req struct {
		ServiceTicket string `json:"serviceTicket"`
		credentialsBody
	}
	if err := json.Unmarshal(body, &req); err != nil {
		common.ErrorResponse(http.StatusBadRequest, "Error processing input: "+err.Error(), w)
		return
	}

	pgtID, err := api.service.DelegateTicketGrantingTicket(r.Context(), req.ServiceTicket, req.credential())
	if err != nil {
		common.ErrorResponse(common.HTTPStatus(err), err.Error(), w)
		return
	}

	b, _ := json.Marshal(map[string]string{"proxyGrantingTicket": pgtID})
	w.Header().Set("Location", common.TicketAPILoc+"/"+pgtID)
	w.Header().Set("Content-Type", common.DefaultMIMEType)
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// Destroy is a handler for cascading logout
// Expected parameters: id
func (api *API) Destroy(w http.ResponseWriter, r *http.Request) {
	params := mux.Vars(r)
	id := params["id"]

	n, err := api.service.DestroyTicketGrantingTicket(r.Context(), id)
	if err != nil {
		common.ErrorResponse(common.HTTPStatus(err), err.Error(), w)
		return
	}

	b, _ := json.Marshal(map[string]int{"deleted": n})
	w.Header().Set("Content-Type", common.DefaultMIMEType)
	w.Write(b)
}

// Index is a handler for enumerating live tickets (diagnostics)
func (api *API) Index(w http.ResponseWriter, r *http.Request) {
	all, err := api.service.Tickets(r.Context())
	if err != nil {
		common.ErrorResponse(common.HTTPStatus(err), err.Error(), w)
		return
	}
	if all == nil {
		all = []ticket.Ticket{}
	}

	b, _ := json.Marshal(map[string]interface{}{
		"total":   len(all),
		"tickets": all,
	})
	w.Header().Set("Content-Type", common.DefaultMIMEType)
	w.Write(b)
}
