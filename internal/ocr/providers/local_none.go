//go:build !tesseract

package providers

func registerLocal() {}
