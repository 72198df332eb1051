// Package api implements the HTTP gateway of the CpG predictor.
//
// The gateway exposes the prediction endpoint plus format-discovery, help and
// health endpoints, translating every pipeline failure into the predictor
// error taxonomy at the handler boundary. Request decoding and response
// encoding are delegated to the codec package so the negotiation rules live
// in one place.
package api
