package leaderboard

import (
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	_ "google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully-qualified name of the leaderboard RPC service.
	ServiceName = "typerace.leaderboard.v1.LeaderboardService"

	SubmitStatsProcedure = "/" + ServiceName + "/SubmitStats"
	ListScoresProcedure  = "/" + ServiceName + "/ListScores"
)

var (
	registerOnce sync.Once
	serviceDesc  protoreflect.ServiceDescriptor
	registerErr  error
)

// serviceDescriptor builds the service schema and adds it to the global
// registry so reflection can resolve it. Requests and responses are
// google.protobuf.Struct values shaped like the REST JSON bodies.
func serviceDescriptor() (protoreflect.ServiceDescriptor, error) {
	registerOnce.Do(func() {
		structType := ".google.protobuf.Struct"
		fdp := &descriptorpb.FileDescriptorProto{
			Name:       proto.String("typerace/leaderboard/v1/leaderboard.proto"),
			Package:    proto.String("typerace.leaderboard.v1"),
			Dependency: []string{"google/protobuf/struct.proto"},
			Syntax:     proto.String("proto3"),
			Service: []*descriptorpb.ServiceDescriptorProto{{
				Name: proto.String("LeaderboardService"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{Name: proto.String("SubmitStats"), InputType: proto.String(structType), OutputType: proto.String(structType)},
					{Name: proto.String("ListScores"), InputType: proto.String(structType), OutputType: proto.String(structType)},
				},
			}},
		}

		fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
		if err != nil {
			registerErr = fmt.Errorf("build leaderboard descriptor: %w", err)
			return
		}
		if existing, err := protoregistry.GlobalFiles.FindFileByPath(fd.Path()); err == nil {
			fd = existing
		} else if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
			registerErr = fmt.Errorf("register leaderboard descriptor: %w", err)
			return
		}
		serviceDesc = fd.Services().ByName("LeaderboardService")
	})
	return serviceDesc, registerErr
}
