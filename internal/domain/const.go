package domain

type ctxKey string

// ViewerAddressCtxKey carries the authenticated viewer's lowercase account
// address through the request context. Absent means anonymous.
const ViewerAddressCtxKey ctxKey = "yb-viewerAddress"
