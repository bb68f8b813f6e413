package wire

// AddOrderResult acknowledges one placed order.
type AddOrderResult struct {
	OrderID      string   `json:"order_id"`
	ClOrdID      *string  `json:"cl_ord_id,omitempty"`
	OrderUserRef *int64   `json:"order_userref,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// EditOrderResult acknowledges an amended order, which gets a new id.
type EditOrderResult struct {
	OrderID         string   `json:"order_id"`
	OriginalOrderID string   `json:"original_order_id"`
	Warnings        []string `json:"warnings,omitempty"`
}

// CancelOrderResult acknowledges one cancelled order.
type CancelOrderResult struct {
	OrderID  *string  `json:"order_id,omitempty"`
	ClOrdID  *string  `json:"cl_ord_id,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// CancelAllOrdersResult reports how many orders cancel_all removed.
type CancelAllOrdersResult struct {
	Count    int64    `json:"count"`
	Warnings []string `json:"warnings,omitempty"`
}

// CancelOnDisconnectResult reports the dead man's switch timer state.
type CancelOnDisconnectResult struct {
	CurrentTime string   `json:"currentTime"`
	TriggerTime string   `json:"triggerTime"`
	Warnings    []string `json:"warnings,omitempty"`
}

// BatchAddResult acknowledges every order of a batch_add, in request order.
type BatchAddResult struct {
	Orders []AddOrderResult
}

// BatchCancelResult is assembled from the top-level fields of a
// batch_cancel reply, which carries no result object.
type BatchCancelResult struct {
	OrdersCancelled int64
	ClOrdIDs        []string
}

// PingResult is the empty result of a ping call.
type PingResult struct{}

func (AddOrderResult) isMethodResult()           {}
func (EditOrderResult) isMethodResult()          {}
func (CancelOrderResult) isMethodResult()        {}
func (CancelAllOrdersResult) isMethodResult()    {}
func (CancelOnDisconnectResult) isMethodResult() {}
func (BatchAddResult) isMethodResult()           {}
func (BatchCancelResult) isMethodResult()        {}
func (PingResult) isMethodResult()               {}
