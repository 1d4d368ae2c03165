// Package loandash provides the domain types shared by the loan portfolio
// dashboard: the persisted session, the identity returned by the backend, the
// "masters" portfolio snapshot with its loans, and the error taxonomy used to
// classify backend responses.
//
// The core functionalities are spread over sub packages:
//   - session: durable storage of the bearer token and identity fields.
//   - api: calls to the backend (identity check, portfolio fetch, CSV upload).
//   - dashboard: the auth gate, the portfolio sync and the upload coordinator
//     composed into a page.
//   - renderer: the aggregate view, a pure function of a snapshot, and its
//     markdown, terminal and HTML renderings.
//
// Amounts are kept exact, in rupees, exactly as the backend produced them.
// Scaling to lakhs or thousands only happens when building a view.
//
// This package serves as the foundational logic for the `ldash` command-line
// tool and its `ldash serve` web dashboard.
package loandash
