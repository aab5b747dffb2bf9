// Package cop defines the request and response types of the pushdown
// query endpoint: the two request shapes (flat select and chained
// executors), schema descriptors, serializable expression trees and the
// chunked result payload.
//
// The types carry no behavior beyond chunk assembly and the lazy chunk
// row iterator; execution lives in lib/exec, request translation in
// lib/plan and the handler in lib/cop/endpoint.
package cop
