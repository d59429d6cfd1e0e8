package httpapi

import (
	"net/http"
	"strings"
	"time"

	"xs2a.org/internal/consent"
	"xs2a.org/internal/sca"
)

type createConsentRequest struct {
	Access                []string      `json:"access"`
	RecurringIndicator    bool          `json:"recurring_indicator"`
	ValidUntil            string        `json:"valid_until"`
	FrequencyPerDay       int           `json:"frequency_per_day"`
	Psus                  []sca.PsuData `json:"psu_data"`
	MultilevelScaRequired bool          `json:"multilevel_sca_required"`
	TppRedirectPreferred  bool          `json:"tpp_redirect_preferred"`
	TppRedirectURI        string        `json:"tpp_redirect_uri"`
	TppNokRedirectURI     string        `json:"tpp_nok_redirect_uri"`
}

func (a *API) createConsent(w http.ResponseWriter, r *http.Request) {
	if !a.requireRole(w, r, "ais") {
		return
	}
	var req createConsentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var validUntil time.Time
	if strings.TrimSpace(req.ValidUntil) != "" {
		var err error
		validUntil, err = time.Parse("2006-01-02", req.ValidUntil)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "valid_until must be a YYYY-MM-DD date")
			return
		}
	}
	number := tppNumber(r)
	if number == "" {
		writeError(w, r, http.StatusBadRequest, "tpp authorisation number is required")
		return
	}

	c, err := a.consents.Create(r.Context(), consent.CreateRequest{
		TppAuthorisationNumber: number,
		Access:                 req.Access,
		RecurringIndicator:     req.RecurringIndicator,
		ValidUntil:             validUntil,
		FrequencyPerDay:        req.FrequencyPerDay,
		Psus:                   req.Psus,
		MultilevelScaRequired:  req.MultilevelScaRequired,
	})
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	a.audit(r.Context(), "consent.create", "consent", c.ExternalID, map[string]string{
		"multilevel": boolLabel(c.MultilevelScaRequired),
	})

	resp := map[string]any{
		"consent_id":     c.ExternalID,
		"consent_status": c.Status,
		"_links":         a.parentLinks("consents", c.ExternalID, "authorisations"),
	}
	if a.implicitAuthorisation() {
		auth, err := a.startImplicitAuthorisation(r, sca.TypeConsent, c.ExternalID, req.Psus, req.TppRedirectPreferred, req.TppRedirectURI, req.TppNokRedirectURI)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		resp["authorisation_id"] = auth.ExternalID
	}
	w.Header().Set("Location", "/v1/consents/"+c.ExternalID)
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) getConsent(w http.ResponseWriter, r *http.Request) {
	if !a.requireRole(w, r, "ais") {
		return
	}
	c, err := a.consents.Get(r.Context(), r.PathValue("parentId"))
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *API) getConsentStatus(w http.ResponseWriter, r *http.Request) {
	if !a.requireRole(w, r, "ais") {
		return
	}
	c, err := a.consents.Get(r.Context(), r.PathValue("parentId"))
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"consent_status": c.Status})
}

func (a *API) deleteConsent(w http.ResponseWriter, r *http.Request) {
	if !a.requireRole(w, r, "ais") {
		return
	}
	c, err := a.consents.Terminate(r.Context(), r.PathValue("parentId"))
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	a.audit(r.Context(), "consent.terminate", "consent", c.ExternalID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"consent_status": c.Status})
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
