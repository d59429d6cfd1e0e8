package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"xs2a.org/internal/basket"
	"xs2a.org/internal/consent"
	"xs2a.org/internal/obs"
	"xs2a.org/internal/payment"
	"xs2a.org/internal/profile"
	"xs2a.org/internal/sca"
)

// ReadyProbe checks dependencies before reporting readiness.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP surface of the gateway. Link decoration and DTO shaping
// happen here, as an explicit step after the orchestration core returns.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	sca      *sca.Service
	consents *consent.Service
	payments *payment.Service
	baskets  *basket.Service
	aspsp    *profile.Profile

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, scaSvc *sca.Service, consents *consent.Service, payments *payment.Service, baskets *basket.Service, aspsp *profile.Profile) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		sca:        scaSvc,
		consents:   consents,
		payments:   payments,
		baskets:    baskets,
		aspsp:      aspsp,
		rateBurst:  20,
		ratePerSec: 10,
	}

	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("GET /metrics", obs.Handler())

	// consents
	a.mux.HandleFunc("POST /v1/consents", a.createConsent)
	a.mux.HandleFunc("GET /v1/consents/{parentId}", a.getConsent)
	a.mux.HandleFunc("GET /v1/consents/{parentId}/status", a.getConsentStatus)
	a.mux.HandleFunc("DELETE /v1/consents/{parentId}", a.deleteConsent)
	a.authorisationRoutes("consents", sca.TypeConsent, "authorisations")

	// payments
	a.mux.HandleFunc("POST /v1/payments", a.createPayment)
	a.mux.HandleFunc("GET /v1/payments/{parentId}", a.getPayment)
	a.mux.HandleFunc("GET /v1/payments/{parentId}/status", a.getPaymentStatus)
	a.authorisationRoutes("payments", sca.TypePisCreation, "authorisations")
	a.authorisationRoutes("payments", sca.TypePisCancellation, "cancellation-authorisations")

	// signing baskets
	a.mux.HandleFunc("POST /v1/signing-baskets", a.createBasket)
	a.mux.HandleFunc("GET /v1/signing-baskets/{parentId}", a.getBasket)
	a.mux.HandleFunc("GET /v1/signing-baskets/{parentId}/status", a.getBasketStatus)
	a.mux.HandleFunc("DELETE /v1/signing-baskets/{parentId}", a.deleteBasket)
	a.authorisationRoutes("signing-baskets", sca.TypeSigningBasket, "authorisations")

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// authorisationRoutes registers the four authorisation operations for one
// parent collection. The handlers are shared; only the kind differs.
func (a *API) authorisationRoutes(collection string, kind sca.AuthorisationType, segment string) {
	base := "/v1/" + collection + "/{parentId}/" + segment
	a.mux.HandleFunc("POST "+base, a.createAuthorisation(kind))
	a.mux.HandleFunc("GET "+base+"/{authorisationId}", a.getAuthorisation(kind))
	a.mux.HandleFunc("GET "+base+"/{authorisationId}/status", a.getScaStatus(kind))
	a.mux.HandleFunc("PUT "+base+"/{authorisationId}", a.updateAuthorisation(kind))
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withTPPAuth(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}
