package extract

import (
	"reflect"
	"testing"

	"github.com/rawblock/linkfinder/internal/model"
)

func TestAddresses(t *testing.T) {
	tx := model.Transaction{
		Txid: "t1",
		Inputs: []model.TxIn{
			{Address: "X"},
			{Address: "X"}, // duplicate, should be dropped
			{Address: ""},  // sentinel, should be dropped
			{Address: "Y"},
		},
		Outputs: []model.TxOut{
			{Address: "Z"},
			{Address: "Y"},
		},
	}

	inputs, outputs := Addresses(tx)

	if !reflect.DeepEqual(inputs, []string{"X", "Y"}) {
		t.Fatalf("inputs = %v, want [X Y]", inputs)
	}
	if !reflect.DeepEqual(outputs, []string{"Z", "Y"}) {
		t.Fatalf("outputs = %v, want [Z Y]", outputs)
	}
}

func TestAddressesEmpty(t *testing.T) {
	inputs, outputs := Addresses(model.Transaction{Txid: "empty"})
	if len(inputs) != 0 || len(outputs) != 0 {
		t.Fatalf("expected empty sets for malformed tx, got inputs=%v outputs=%v", inputs, outputs)
	}
}
