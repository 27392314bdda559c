// Package ws implements the WebSocket broadcaster for exposure snapshots.
//
// Hub manages the set of connected clients. Unlike a polling hub there is no
// ticker: the exposure cache calls Publish after every successful refresh and
// each client receives the update through its own buffered send channel, so a
// publish never blocks on a slow subscriber. Clients that fall behind or fail
// a write are pruned.
//
// On connect the current snapshot (if any) is delivered immediately, so late
// joiners are not blind until the next refresh.
//
// Message format sent to clients:
//
//	{
//	  "type": "update",
//	  "records": [ {name, days_since_exposure, last_exposure_date, foods}, ... ],
//	  "computed_at": "2024-05-01T12:30:00Z"
//	}
//
// The upgrader accepts all origins; apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/allergens by the server.
package ws
