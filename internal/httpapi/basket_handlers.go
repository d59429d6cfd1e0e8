package httpapi

import (
	"net/http"

	"xs2a.org/internal/basket"
	"xs2a.org/internal/sca"
)

type createBasketRequest struct {
	ConsentIDs            []string      `json:"consent_ids"`
	PaymentIDs            []string      `json:"payment_ids"`
	Psus                  []sca.PsuData `json:"psu_data"`
	MultilevelScaRequired bool          `json:"multilevel_sca_required"`
	TppRedirectPreferred  bool          `json:"tpp_redirect_preferred"`
	TppRedirectURI        string        `json:"tpp_redirect_uri"`
	TppNokRedirectURI     string        `json:"tpp_nok_redirect_uri"`
}

func (a *API) createBasket(w http.ResponseWriter, r *http.Request) {
	if !a.requireAnyRole(w, r, "ais", "pis") {
		return
	}
	var req createBasketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	number := tppNumber(r)
	if number == "" {
		writeError(w, r, http.StatusBadRequest, "tpp authorisation number is required")
		return
	}

	b, err := a.baskets.Create(r.Context(), basket.CreateRequest{
		TppAuthorisationNumber: number,
		ConsentIDs:             req.ConsentIDs,
		PaymentIDs:             req.PaymentIDs,
		Psus:                   req.Psus,
		MultilevelScaRequired:  req.MultilevelScaRequired,
	})
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	a.audit(r.Context(), "basket.create", "signing_basket", b.ExternalID, map[string]string{
		"multilevel": boolLabel(b.MultilevelScaRequired),
	})

	resp := map[string]any{
		"basket_id":          b.ExternalID,
		"transaction_status": b.Status,
		"_links":             a.parentLinks("signing-baskets", b.ExternalID, "authorisations"),
	}
	if a.implicitAuthorisation() {
		auth, err := a.startImplicitAuthorisation(r, sca.TypeSigningBasket, b.ExternalID, req.Psus, req.TppRedirectPreferred, req.TppRedirectURI, req.TppNokRedirectURI)
		if err != nil {
			handleCoreError(w, r, err)
			return
		}
		resp["authorisation_id"] = auth.ExternalID
	}
	w.Header().Set("Location", "/v1/signing-baskets/"+b.ExternalID)
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) getBasket(w http.ResponseWriter, r *http.Request) {
	if !a.requireAnyRole(w, r, "ais", "pis") {
		return
	}
	b, err := a.baskets.Get(r.Context(), r.PathValue("parentId"))
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) getBasketStatus(w http.ResponseWriter, r *http.Request) {
	if !a.requireAnyRole(w, r, "ais", "pis") {
		return
	}
	b, err := a.baskets.Get(r.Context(), r.PathValue("parentId"))
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction_status": b.Status})
}

func (a *API) deleteBasket(w http.ResponseWriter, r *http.Request) {
	if !a.requireAnyRole(w, r, "ais", "pis") {
		return
	}
	b, err := a.baskets.Cancel(r.Context(), r.PathValue("parentId"))
	if err != nil {
		handleCoreError(w, r, err)
		return
	}
	a.audit(r.Context(), "basket.cancel", "signing_basket", b.ExternalID, nil)
	writeJSON(w, http.StatusOK, map[string]any{"transaction_status": b.Status})
}
