package podpay

import (
	"encoding/json"
	"fmt"
	"time"
)

// The gateway is inconsistent about casing and nesting: ids arrive as "id",
// "transactionId" or "transaction_id", the pix payload under "pix" or at the
// top level, fields in camelCase or snake_case. parseTransaction resolves each
// field through a fixed ordered list of known aliases instead of letting
// missing keys propagate as zero values unnoticed.

func parseTransaction(body []byte) (*Transaction, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}

	// some responses wrap the transaction under "data"
	if data, ok := raw["data"].(map[string]any); ok {
		raw = data
	}

	tx := &Transaction{
		TransactionID: firstString(raw, "id", "transactionId", "transaction_id"),
		Status:        firstString(raw, "status", "transactionStatus", "transaction_status"),
		Amount:        firstInt(raw, "amount", "value", "total"),
		CreatedAt:     firstString(raw, "createdAt", "created_at"),
	}

	if tx.TransactionID == "" {
		return nil, fmt.Errorf("decode transaction: no transaction id in response")
	}

	pixRaw := raw
	if nested, ok := raw["pix"].(map[string]any); ok {
		pixRaw = nested
	}
	tx.Pix = Pix{
		QRCode:      firstString(pixRaw, "qrCode", "qrcode", "qr_code"),
		QRCodeImage: firstString(pixRaw, "qrCodeImage", "qrcode_image", "qr_code_image", "qrCodeUrl"),
		CopyPaste:   firstString(pixRaw, "copyPaste", "copy_paste", "pixCopiaECola", "emv"),
		ExpiresAt:   firstString(pixRaw, "expiresAt", "expires_at", "expirationDate", "expiration_date"),
	}
	// gateways that only return the EMV string under qrCode
	if tx.Pix.CopyPaste == "" {
		tx.Pix.CopyPaste = tx.Pix.QRCode
	}

	if s := firstString(raw, "paidAt", "paid_at"); s != "" {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			tx.PaidAt = &ts
		}
	}

	return tx, nil
}

func firstString(raw map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := raw[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstInt(raw map[string]any, keys ...string) int64 {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case float64:
			return int64(v)
		case json.Number:
			if n, err := v.Int64(); err == nil {
				return n
			}
		}
	}
	return 0
}
