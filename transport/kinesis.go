/*
 * Copyright 2021 Comcast Cable Communications Management, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package transport

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	consumer "github.com/harlow/kinesis-consumer"

	"github.com/adobe/pardon-engine/envelope"
)

// Kinesis is an alternate engine.Fetcher for endpoints whose "response"
// is an asynchronous Kinesis record rather than an HTTP reply: it puts
// the rendered request's body onto StreamName via the AWS SDK, then
// scans RecordStreamName with harlow/kinesis-consumer until the first
// record arrives (or ctx is cancelled), returning the record's data
// unchanged as the body of a status-200 response.
//
// Grounded on the same Chan-shaped Pub/To split as HTTPClient and
// MQTT; both the aws-sdk-go and harlow/kinesis-consumer dependencies
// are carried unchanged from the teacher's go.mod.
type Kinesis struct {
	Producer         *kinesis.Kinesis
	StreamName       string
	RecordStreamName string
	PartitionKey     string
}

// NewKinesis builds a Kinesis transport from a default AWS session
// (region/credentials resolved the standard SDK way: environment,
// shared config, or EC2/ECS role).
func NewKinesis(streamName, recordStreamName, partitionKey string) (*Kinesis, error) {
	sess, err := session.NewSession()
	if err != nil {
		return nil, fmt.Errorf("transport: aws session: %w", err)
	}
	return &Kinesis{
		Producer:         kinesis.New(sess),
		StreamName:       streamName,
		RecordStreamName: recordStreamName,
		PartitionKey:     partitionKey,
	}, nil
}

// Fetch publishes req.Body as one Kinesis record, then consumes
// RecordStreamName for the next record and returns it as the response
// body.
func (k *Kinesis) Fetch(ctx context.Context, req *envelope.Request) (*envelope.Response, error) {
	partitionKey := k.PartitionKey
	if partitionKey == "" {
		partitionKey = req.URL
	}

	if _, err := k.Producer.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(k.StreamName),
		PartitionKey: aws.String(partitionKey),
		Data:         []byte(req.Body),
	}); err != nil {
		return nil, fmt.Errorf("transport: kinesis put record: %w", err)
	}

	c, err := consumer.New(k.RecordStreamName)
	if err != nil {
		return nil, fmt.Errorf("transport: kinesis consumer: %w", err)
	}

	var response *envelope.Response
	stop := fmt.Errorf("transport: kinesis: record received")

	scanErr := c.Scan(ctx, func(r *consumer.Record) error {
		response = &envelope.Response{Status: 200, Body: string(r.Data)}
		return stop
	})
	if scanErr != nil && scanErr != stop {
		return nil, fmt.Errorf("transport: kinesis scan: %w", scanErr)
	}
	if response == nil {
		return nil, fmt.Errorf("transport: kinesis: no record received on %q", k.RecordStreamName)
	}
	return response, nil
}
