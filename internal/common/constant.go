package common

// AccessTokenHeaderName is the gRPC/HTTP metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// UploadEndMarker terminates an upload stream on text transports.
const UploadEndMarker = "__EOF__"
