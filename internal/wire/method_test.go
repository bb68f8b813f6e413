package wire

import (
	"reflect"
	"strings"
	"testing"

	"github.com/coachpo/krakenws/errs"
)

const stamps = `"time_in":"2024-05-19T19:30:36.343170Z","time_out":"2024-05-19T19:30:36.350083Z"`

func decodeReply(t *testing.T, frame string) *MethodReply {
	t.Helper()
	msg, err := Decode([]byte(frame))
	if err != nil {
		t.Fatalf("decode %s: %v", frame, err)
	}
	reply, ok := msg.(*MethodReply)
	if !ok {
		t.Fatalf("expected *MethodReply, got %T", msg)
	}
	if reply.TimeIn != "2024-05-19T19:30:36.343170Z" || reply.TimeOut != "2024-05-19T19:30:36.350083Z" {
		t.Fatalf("timestamps not preserved: %q %q", reply.TimeIn, reply.TimeOut)
	}
	return reply
}

func strPtr(s string) *string  { return &s }
func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestDecodeMethodReplySuccess(t *testing.T) {
	cases := []struct {
		name   string
		frame  string
		method Method
		want   MethodResult
	}{
		{
			name:   "add_order",
			frame:  `{"method":"add_order","req_id":7,"result":{"order_id":"OXKIAP-NZFTK-YCSRRF","cl_ord_id":"my-1","order_userref":3},"success":true,` + stamps + `}`,
			method: MethodAddOrder,
			want:   AddOrderResult{OrderID: "OXKIAP-NZFTK-YCSRRF", ClOrdID: strPtr("my-1"), OrderUserRef: int64Ptr(3)},
		},
		{
			name:   "edit_order",
			frame:  `{"method":"edit_order","req_id":7,"result":{"order_id":"NEW-1","original_order_id":"OLD-1"},"success":true,` + stamps + `}`,
			method: MethodEditOrder,
			want:   EditOrderResult{OrderID: "NEW-1", OriginalOrderID: "OLD-1"},
		},
		{
			name:   "cancel_order",
			frame:  `{"method":"cancel_order","req_id":7,"result":{"order_id":"OXKIAP-NZFTK-YCSRRF"},"success":true,` + stamps + `}`,
			method: MethodCancelOrder,
			want:   CancelOrderResult{OrderID: strPtr("OXKIAP-NZFTK-YCSRRF")},
		},
		{
			name:   "cancel_all",
			frame:  `{"method":"cancel_all","req_id":7,"result":{"count":4},"success":true,` + stamps + `}`,
			method: MethodCancelAll,
			want:   CancelAllOrdersResult{Count: 4},
		},
		{
			name:   "cancel_all_orders_after",
			frame:  `{"method":"cancel_all_orders_after","req_id":7,"result":{"currentTime":"2024-05-19T19:30:36Z","triggerTime":"2024-05-19T19:31:36Z"},"success":true,` + stamps + `}`,
			method: MethodCancelAllOrdersAfter,
			want:   CancelOnDisconnectResult{CurrentTime: "2024-05-19T19:30:36Z", TriggerTime: "2024-05-19T19:31:36Z"},
		},
		{
			name:   "batch_add",
			frame:  `{"method":"batch_add","req_id":7,"result":[{"order_id":"A-1"},{"order_id":"B-2"}],"success":true,` + stamps + `}`,
			method: MethodBatchAdd,
			want:   BatchAddResult{Orders: []AddOrderResult{{OrderID: "A-1"}, {OrderID: "B-2"}}},
		},
		{
			name:   "batch_cancel",
			frame:  `{"method":"batch_cancel","orders_cancelled":2,"cl_ord_id":["a","b"],"req_id":7,"success":true,` + stamps + `}`,
			method: MethodBatchCancel,
			want:   BatchCancelResult{OrdersCancelled: 2, ClOrdIDs: []string{"a", "b"}},
		},
		{
			name:   "ping",
			frame:  `{"method":"ping","req_id":7,"success":true,` + stamps + `}`,
			method: MethodPing,
			want:   PingResult{},
		},
		{
			name:   "ping alias with null result",
			frame:  `{"method":"Ping","req_id":7,"result":null,"success":true,` + stamps + `}`,
			method: MethodPing,
			want:   PingResult{},
		},
		{
			name:   "subscribe",
			frame:  `{"method":"subscribe","req_id":7,"result":{"channel":"trade","snapshot":true,"symbol":"BTC/USD"},"success":true,` + stamps + `}`,
			method: MethodSubscribe,
			want:   TradeAck{Symbol: "BTC/USD", Snapshot: boolPtr(true)},
		},
		{
			name:   "unsubscribe",
			frame:  `{"method":"unsubscribe","req_id":7,"result":{"channel":"trade","symbol":"BTC/USD"},"success":true,` + stamps + `}`,
			method: MethodUnsubscribe,
			want:   TradeUnsubAck{Symbol: "BTC/USD"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reply := decodeReply(t, tc.frame)
			if reply.Method != tc.method {
				t.Fatalf("expected method %s, got %s", tc.method, reply.Method)
			}
			if !reply.Success || reply.Error != "" {
				t.Fatalf("expected success without error, got %+v", reply)
			}
			if reply.ReqID != 7 {
				t.Fatalf("expected req_id 7, got %d", reply.ReqID)
			}
			if !reflect.DeepEqual(reply.Result, tc.want) {
				t.Fatalf("result mismatch\nwant %#v\ngot  %#v", tc.want, reply.Result)
			}
		})
	}
}

func TestDecodeMethodReplyFailure(t *testing.T) {
	methods := []string{
		"add_order", "edit_order", "cancel_order", "cancel_all", "cancel_all_orders_after",
		"batch_add", "batch_cancel", "subscribe", "unsubscribe", "ping", "Ping",
	}
	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			frame := `{"method":"` + method + `","req_id":9,"error":"EOrder:Unknown order","success":false,` + stamps + `}`
			reply := decodeReply(t, frame)
			if reply.Success {
				t.Fatalf("expected failure")
			}
			if reply.Error != "EOrder:Unknown order" {
				t.Fatalf("unexpected error text %q", reply.Error)
			}
			if reply.Result != nil {
				t.Fatalf("expected nil result, got %#v", reply.Result)
			}
			if reply.ReqID != 9 {
				t.Fatalf("expected req_id 9, got %d", reply.ReqID)
			}
		})
	}
}

func TestDecodePong(t *testing.T) {
	reply := decodeReply(t, `{"method":"pong","req_id":3,`+stamps+`}`)
	if reply.Method != MethodPong || !reply.Success || reply.Result != nil {
		t.Fatalf("unexpected pong %+v", reply)
	}

	reply = decodeReply(t, `{"method":"pong","req_id":3,"error":"EGeneral:Too many requests",`+stamps+`}`)
	if reply.Success || reply.Error != "EGeneral:Too many requests" {
		t.Fatalf("unexpected failed pong %+v", reply)
	}

	_, err := Decode([]byte(`{"method":"pong","req_id":3,"success":true,` + stamps + `}`))
	if !errs.HasCode(err, errs.CodeStructuralMismatch) {
		t.Fatalf("pong with success key should mismatch, got %v", err)
	}
}

func TestDecodeMethodReplyStrictness(t *testing.T) {
	cases := map[string]string{
		"unknown field":          `{"method":"cancel_all","req_id":1,"result":{"count":0},"success":true,"extra":1,` + stamps + `}`,
		"missing req_id":         `{"method":"cancel_all","result":{"count":0},"success":true,` + stamps + `}`,
		"missing time_out":       `{"method":"cancel_all","req_id":1,"result":{"count":0},"success":true,"time_in":"x"}`,
		"success with error":     `{"method":"cancel_all","req_id":1,"result":{"count":0},"error":"x","success":true,` + stamps + `}`,
		"failure without error":  `{"method":"cancel_all","req_id":1,"success":false,` + stamps + `}`,
		"failure with result":    `{"method":"cancel_all","req_id":1,"result":{"count":0},"error":"x","success":false,` + stamps + `}`,
		"success without result": `{"method":"cancel_all","req_id":1,"success":true,` + stamps + `}`,
		"ping with result":       `{"method":"ping","req_id":1,"result":{},"success":true,` + stamps + `}`,
		"wrong result type":      `{"method":"cancel_all","req_id":1,"result":{"count":"many"},"success":true,` + stamps + `}`,
		"batch_cancel result":    `{"method":"batch_cancel","req_id":1,"result":{},"success":true,` + stamps + `}`,
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(frame))
			if !errs.HasCode(err, errs.CodeStructuralMismatch) {
				t.Fatalf("expected structural_mismatch, got %v", err)
			}
		})
	}
}

func TestDecodeUnknownMethod(t *testing.T) {
	for _, method := range []string{"PING", "amend_order", "Pong"} {
		_, err := Decode([]byte(`{"method":"` + method + `","req_id":1,"success":true,` + stamps + `}`))
		if !errs.HasCode(err, errs.CodeUnrecognizedTag) {
			t.Fatalf("method %s: expected unrecognized_tag, got %v", method, err)
		}
		if !strings.Contains(err.Error(), method) {
			t.Fatalf("error should name the tag: %v", err)
		}
	}
}
