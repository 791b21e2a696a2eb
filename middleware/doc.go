// Package middleware provides pipeline steps for the cross-cutting concerns
// of a relay service.
//
// Every constructor returns a pipeline.Step. Steps run in registration
// order before the resource handler; a step that finishes the response
// itself (a CORS preflight, a rejected rate limit, an oversized body)
// stops the chain without an error.
//
//	cors, err := middleware.CORS(middleware.CORSConfig{
//		Origin:      []string{"https://app.example.com"},
//		Credentials: true,
//	})
//	if err != nil {
//		return err
//	}
//
//	r.Use(
//		middleware.RequestID(middleware.RequestIDConfig{}),
//		middleware.ClientIP(middleware.ClientIPConfig{}),
//		cors,
//		middleware.BodyParser(middleware.BodyParserConfig{MaxSize: 1 << 20}),
//	)
//
// Values attached by steps are read with the matching Get helper, e.g.
// GetBody, GetRequestID and GetClientIP.
package middleware
