package apiv1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// BasePath is where the v1 document's paths are mounted.
const BasePath = "/api/v1"

// LoadDocument reads and validates the OpenAPI document.
func LoadDocument(path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

// RequestValidator rejects requests whose parameters break the document with
// 400. Paths the document does not describe pass through untouched.
func RequestValidator(doc *openapi3.T) (fiber.Handler, error) {
	// Routes are matched on the path below BasePath, so the servers list is not consulted.
	doc.Servers = nil
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	opts := &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc}

	return func(c *fiber.Ctx) error {
		var req http.Request
		if err := fasthttpadaptor.ConvertRequest(c.Context(), &req, true); err != nil {
			log.Errorf("[API] convert request: %v", err)
			return apiError(c, fiber.StatusInternalServerError, "internal_server_error", "")
		}
		req.URL.Path = strings.TrimPrefix(req.URL.Path, BasePath)
		if req.URL.Path == "" {
			req.URL.Path = "/"
		}

		route, pathParams, err := router.FindRoute(&req)
		if err != nil {
			if errors.Is(err, routers.ErrPathNotFound) || errors.Is(err, routers.ErrMethodNotAllowed) {
				return c.Next()
			}
			return apiError(c, fiber.StatusBadRequest, "bad_request", err.Error())
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    &req,
			PathParams: pathParams,
			Route:      route,
			Options:    opts,
		}
		if err := openapi3filter.ValidateRequest(context.Background(), input); err != nil {
			return apiError(c, fiber.StatusBadRequest, "invalid_request", validationMessage(err))
		}
		return c.Next()
	}, nil
}

func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		reason := reqErr.Reason
		if reason == "" && reqErr.Err != nil {
			reason = reqErr.Err.Error()
		}
		if reqErr.Parameter != nil {
			return fmt.Sprintf("parameter %q: %s", reqErr.Parameter.Name, reason)
		}
		return reqErr.Error()
	}
	return err.Error()
}
