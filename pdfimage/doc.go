// Package pdfimage decodes image XObjects and inline images into Go images
// and encodes Go images back into image XObject streams.
//
// Supported sample layouts are 1, 2, 4, 8 and 16 bits per component in
// DeviceGray, DeviceRGB, DeviceCMYK, CalGray, CalRGB, ICCBased (by /N),
// Indexed and Separation spaces, plus stencil masks. DCTDecode data is
// decoded with image/jpeg; JPX and JBIG2 data fail with
// *core.UnsupportedFilterError.
package pdfimage
