package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PaymentAssertion 网关签发的支付断言
type PaymentAssertion struct {
	OrderRef   string
	PaymentRef string
	Signature  string
}

// SignatureVerifier 支付断言验签
type SignatureVerifier interface {
	Verify(ctx context.Context, assertion PaymentAssertion) error
}

// HMACSignatureVerifier 共享密钥 HMAC-SHA256 验签
type HMACSignatureVerifier struct {
	secret []byte
}

// NewHMACSignatureVerifier 创建 HMAC 验签器
func NewHMACSignatureVerifier(secret string) *HMACSignatureVerifier {
	return &HMACSignatureVerifier{secret: []byte(secret)}
}

// Verify 重新计算 orderRef|paymentRef 的签名并做常量时间比较
func (v *HMACSignatureVerifier) Verify(ctx context.Context, assertion PaymentAssertion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// 未配置密钥时拒绝全部确认
	if v == nil || len(v.secret) == 0 {
		return ErrInvalidSignature
	}
	provided, err := hex.DecodeString(strings.TrimSpace(assertion.Signature))
	if err != nil || len(provided) == 0 {
		return ErrInvalidSignature
	}
	expected := computePaymentMAC(v.secret, assertion.OrderRef, assertion.PaymentRef)
	if !hmac.Equal(expected, provided) {
		return ErrInvalidSignature
	}
	return nil
}

// SignPaymentAssertion 生成 orderRef|paymentRef 的十六进制签名
func SignPaymentAssertion(secret, orderRef, paymentRef string) string {
	return hex.EncodeToString(computePaymentMAC([]byte(secret), orderRef, paymentRef))
}

func computePaymentMAC(secret []byte, orderRef, paymentRef string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return mac.Sum(nil)
}
