package callbacks

import (
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		cb       *tele.Callback
		key, pay string
	}{
		{nil, "", ""},
		{&tele.Callback{Data: "\fverify|"}, "verify", ""},
		{&tele.Callback{Data: "\fwithdraw|now"}, "withdraw", "now"},
		{&tele.Callback{Data: "balance"}, "balance", ""},
		{&tele.Callback{Unique: "info", Data: "x"}, "info", "x"},
	}
	for _, tc := range cases {
		key, pay := ParseCallbackData(tc.cb)
		if key != tc.key || pay != tc.pay {
			t.Errorf("ParseCallbackData(%+v) = %q, %q; want %q, %q", tc.cb, key, pay, tc.key, tc.pay)
		}
	}
}
