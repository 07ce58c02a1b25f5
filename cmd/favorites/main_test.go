package main

import (
	"context"
	"net/http"
	"reflect"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain_StartsLambda(t *testing.T) {
	original := lambdaStart
	defer func() { lambdaStart = original }()

	var started interface{}
	lambdaStart = func(h interface{}) {
		started = h
	}

	main()

	require.NotNil(t, started)
	assert.Equal(t, reflect.ValueOf(handleRequest).Pointer(), reflect.ValueOf(started).Pointer())
}

func TestHandleRequest_MethodNotAllowed(t *testing.T) {
	response, err := handleRequest(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: http.MethodHead})
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, response.StatusCode)
}
