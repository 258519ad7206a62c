package httpapi

import (
	"fmt"
	"net/http"

	"github.com/combust-labs/smartmob-agent/pkg/record"
	"github.com/gorilla/mux"
)

// discoveryDocument is the body of GET / (spec §6).
type discoveryDocument struct {
	List   string `json:"list"`
	Create string `json:"create"`
}

// processDetail is the representation of a single ProcessRecord (spec §4.9, §6).
type processDetail struct {
	App     string `json:"app"`
	Slug    string `json:"slug"`
	Attach  string `json:"attach"`
	Details string `json:"details"`
	Delete  string `json:"delete"`
	State   string `json:"state"`
}

// processListing is the body of GET /list-processes.
type processListing struct {
	Processes []processDetail `json:"processes"`
}

// absoluteURL resolves a named route against the request's scheme and
// host, the way spec §4.9 requires every ProcessRecord representation
// to be serialised: "resolving the router's named routes against the
// request's scheme/host".
func absoluteURL(r *http.Request, router *mux.Router, routeName string, scheme string, pairs ...string) (string, error) {
	route := router.Get(routeName)
	if route == nil {
		return "", fmt.Errorf("no such route %q", routeName)
	}
	u, err := route.URL(pairs...)
	if err != nil {
		return "", fmt.Errorf("failed resolving route %q: %w", routeName, err)
	}
	u.Scheme = scheme
	u.Host = r.Host
	return u.String(), nil
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func discoveryDoc(r *http.Request, router *mux.Router) (discoveryDocument, error) {
	scheme := requestScheme(r)
	list, err := absoluteURL(r, router, routeListProcesses, scheme)
	if err != nil {
		return discoveryDocument{}, err
	}
	create, err := absoluteURL(r, router, routeCreateProcess, scheme)
	if err != nil {
		return discoveryDocument{}, err
	}
	return discoveryDocument{List: list, Create: create}, nil
}

func detailOf(r *http.Request, router *mux.Router, rec *record.Record) (processDetail, error) {
	scheme := requestScheme(r)

	details, err := absoluteURL(r, router, routeProcessStatus, scheme, "slug", rec.Slug)
	if err != nil {
		return processDetail{}, err
	}
	del, err := absoluteURL(r, router, routeDeleteProcess, scheme, "slug", rec.Slug)
	if err != nil {
		return processDetail{}, err
	}
	attach, err := absoluteURL(r, router, routeAttachConsole, "ws", "slug", rec.Slug)
	if err != nil {
		return processDetail{}, err
	}

	return processDetail{
		App:     rec.App,
		Slug:    rec.Slug,
		Attach:  attach,
		Details: details,
		Delete:  del,
		State:   string(rec.State()),
	}, nil
}
