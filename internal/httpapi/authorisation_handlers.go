package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"xs2a.org/internal/sca"
)

type createAuthorisationRequest struct {
	Psu                  sca.PsuData `json:"psu_data"`
	Password             string      `json:"password,omitempty"`
	TppRedirectPreferred bool        `json:"tpp_redirect_preferred"`
	TppRedirectURI       string      `json:"tpp_redirect_uri"`
	TppNokRedirectURI    string      `json:"tpp_nok_redirect_uri"`
}

type updateAuthorisationRequest struct {
	Psu                    sca.PsuData `json:"psu_data"`
	Password               string      `json:"password,omitempty"`
	AuthenticationMethodID string      `json:"authentication_method_id,omitempty"`
	ScaAuthenticationData  string      `json:"sca_authentication_data,omitempty"`
}

// collectionFor maps an authorisation kind back onto its URL segments for
// Location headers and links.
func collectionFor(kind sca.AuthorisationType) (collection, segment string) {
	switch kind {
	case sca.TypeConsent:
		return "consents", "authorisations"
	case sca.TypePisCreation:
		return "payments", "authorisations"
	case sca.TypePisCancellation:
		return "payments", "cancellation-authorisations"
	default:
		return "signing-baskets", "authorisations"
	}
}

func rolesFor(kind sca.AuthorisationType) []string {
	switch kind {
	case sca.TypeConsent:
		return []string{"ais"}
	case sca.TypePisCreation, sca.TypePisCancellation:
		return []string{"pis"}
	default:
		return []string{"ais", "pis"}
	}
}

func (a *API) createAuthorisation(kind sca.AuthorisationType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.requireAnyRole(w, r, rolesFor(kind)...) {
			return
		}
		var req createAuthorisationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		parentID := r.PathValue("parentId")
		auth, err := a.sca.CreateAuthorisation(r.Context(), kind, parentID, sca.CreateRequest{
			Psu:                  req.Psu,
			RedirectURI:          req.TppRedirectURI,
			NokRedirectURI:       req.TppNokRedirectURI,
			TppRedirectPreferred: req.TppRedirectPreferred,
			InternalRequestID:    uuid.NewString(),
		})
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		a.audit(r.Context(), "authorisation.create", "authorisation", auth.ExternalID, map[string]string{
			"kind": string(kind),
		})

		// Combined identification plus credentials is accepted for embedded
		// flows; failures after creation still return the created resource id.
		if !req.Psu.IsEmpty() {
			updated, err := a.sca.UpdatePsuData(r.Context(), kind, parentID, auth.ExternalID, sca.UpdateRequest{
				Psu:      req.Psu,
				Password: req.Password,
			})
			if err != nil {
				handleCoreError(w, r, err)
				return
			}
			auth = updated
		}

		collection, segment := collectionFor(kind)
		location := "/v1/" + collection + "/" + parentID + "/" + segment + "/" + auth.ExternalID
		w.Header().Set("Location", location)
		writeJSON(w, http.StatusCreated, map[string]any{
			"authorisation_id": auth.ExternalID,
			"sca_status":       auth.ScaStatus,
			"sca_approach":     auth.ScaApproach,
			"_links": map[string]string{
				"self":      location,
				"scaStatus": location + "/status",
			},
		})
	}
}

func (a *API) getAuthorisation(kind sca.AuthorisationType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.requireAnyRole(w, r, rolesFor(kind)...) {
			return
		}
		auth, err := a.sca.GetAuthorisation(r.Context(), kind, r.PathValue("parentId"), r.PathValue("authorisationId"))
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, auth)
	}
}

func (a *API) getScaStatus(kind sca.AuthorisationType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.requireAnyRole(w, r, rolesFor(kind)...) {
			return
		}
		status, err := a.sca.GetScaStatus(r.Context(), kind, r.PathValue("parentId"), r.PathValue("authorisationId"))
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sca_status": status})
	}
}

func (a *API) updateAuthorisation(kind sca.AuthorisationType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.requireAnyRole(w, r, rolesFor(kind)...) {
			return
		}
		var req updateAuthorisationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		auth, err := a.sca.UpdatePsuData(r.Context(), kind, r.PathValue("parentId"), r.PathValue("authorisationId"), sca.UpdateRequest{
			Psu:                    req.Psu,
			Password:               req.Password,
			AuthenticationMethodID: req.AuthenticationMethodID,
			ScaAuthenticationData:  req.ScaAuthenticationData,
		})
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		a.audit(r.Context(), "authorisation.update", "authorisation", auth.ExternalID, map[string]string{
			"kind":       string(kind),
			"sca_status": string(auth.ScaStatus),
		})
		writeJSON(w, http.StatusOK, auth)
	}
}

// implicitAuthorisation reports whether resource creation should also open
// the first authorisation, per the ASPSP profile.
func (a *API) implicitAuthorisation() bool {
	return a.aspsp != nil && a.aspsp.ImplicitAuthorisation()
}

func (a *API) startImplicitAuthorisation(r *http.Request, kind sca.AuthorisationType, parentID string, psus []sca.PsuData, redirectPreferred bool, redirectURI, nokRedirectURI string) (*sca.Authorisation, error) {
	var psu sca.PsuData
	if len(psus) == 1 {
		psu = psus[0]
	}
	return a.sca.CreateAuthorisation(r.Context(), kind, parentID, sca.CreateRequest{
		Psu:                  psu,
		RedirectURI:          redirectURI,
		NokRedirectURI:       nokRedirectURI,
		TppRedirectPreferred: redirectPreferred,
		InternalRequestID:    uuid.NewString(),
	})
}

func (a *API) parentLinks(collection, externalID, segment string) map[string]string {
	base := "/v1/" + collection + "/" + externalID
	return map[string]string{
		"self":               base,
		"status":             base + "/status",
		"startAuthorisation": base + "/" + segment,
	}
}
